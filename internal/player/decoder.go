package player

import (
	"sync"
	"time"
)

// Decoder порт декодера видео. В браузере его реализует видеоэлемент,
// на сервере — VirtualDecoder, моделирующий позицию воспроизведения
// по настенным часам.
type Decoder interface {
	// Play запускает непрерывное воспроизведение. Ошибка (например,
	// политика автовоспроизведения) не фатальна и глотается вызывающим.
	Play() error
	// Pause останавливает воспроизведение
	Pause()
	// CurrentTime возвращает текущую позицию в секундах
	CurrentTime() float64
	// SetCurrentTime перематывает на позицию в секундах
	SetCurrentTime(sec float64)
	// Seeked сигнализирует о завершении перемотки. Канал может не
	// сработать на неисправном декодере — вызывающий обязан ограничить
	// ожидание по времени.
	Seeked() <-chan struct{}
}

// Grabber опциональная способность декодера отдавать пиксели кадра
// для миниатюр
type Grabber interface {
	GrabFrame(frame int) ([]byte, error)
}

// VirtualDecoder серверная реализация декодера: позиция моделируется
// по времени с момента запуска воспроизведения
type VirtualDecoder struct {
	mu        sync.Mutex
	pos       float64
	playing   bool
	startedAt time.Time
	duration  float64
	playErr   error
	seeked    chan struct{}
}

// NewVirtualDecoder создает виртуальный декодер для видео заданной длительности
func NewVirtualDecoder(duration float64) *VirtualDecoder {
	return &VirtualDecoder{
		duration: duration,
		seeked:   make(chan struct{}, 1),
	}
}

// SetPlayError заставляет Play возвращать ошибку (имитация запрета автовоспроизведения)
func (d *VirtualDecoder) SetPlayError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playErr = err
}

// Play запускает отсчет позиции
func (d *VirtualDecoder) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playErr != nil {
		return d.playErr
	}
	if !d.playing {
		d.playing = true
		d.startedAt = time.Now()
	}
	return nil
}

// Pause фиксирует текущую позицию и останавливает отсчет
func (d *VirtualDecoder) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		d.pos = d.currentLocked()
		d.playing = false
	}
}

// CurrentTime возвращает текущую позицию в секундах
func (d *VirtualDecoder) CurrentTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentLocked()
}

func (d *VirtualDecoder) currentLocked() float64 {
	pos := d.pos
	if d.playing {
		pos += time.Since(d.startedAt).Seconds()
	}
	if pos > d.duration {
		pos = d.duration
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// SetCurrentTime перематывает на позицию и сигнализирует о завершении
func (d *VirtualDecoder) SetCurrentTime(sec float64) {
	d.mu.Lock()
	if sec < 0 {
		sec = 0
	}
	if sec > d.duration {
		sec = d.duration
	}
	d.pos = sec
	if d.playing {
		d.startedAt = time.Now()
	}
	d.mu.Unlock()

	select {
	case d.seeked <- struct{}{}:
	default:
	}
}

// Seeked возвращает канал сигнала завершения перемотки
func (d *VirtualDecoder) Seeked() <-chan struct{} {
	return d.seeked
}
