package player

import (
	"math"
	"sync"
	"time"

	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// State состояние контроллера воспроизведения. Явный конечный автомат
// вместо набора булевых флагов: четыре состояния покрывают все допустимые
// комбинации режима и воспроизведения.
type State int

const (
	StateNormalPaused State = iota
	StateNormalPlaying
	StateStepPaused
	StateStepPlaying
)

// String возвращает имя состояния для логов и API
func (s State) String() string {
	switch s {
	case StateNormalPaused:
		return "normal-paused"
	case StateNormalPlaying:
		return "normal-playing"
	case StateStepPaused:
		return "step-paused"
	case StateStepPlaying:
		return "step-playing"
	}
	return "unknown"
}

// DefaultStepInterval интервал шага в покадровом режиме
const DefaultStepInterval = 500 * time.Millisecond

// Player контроллер воспроизведения и перемотки. Владеет состоянием
// воспроизведения единолично: все коллаборации (undo/redo, списки
// помеченных кадров и группировок) перемещают позицию только через
// его методы.
type Player struct {
	mu   sync.Mutex
	dec  Decoder
	info models.VideoInfo

	state State
	frame int // Авторитетный счетчик кадра в покадровом режиме

	stepInterval time.Duration
	stepGen      int // Поколение степпера: устаревший таймер не двигает кадр
	stepQuit     chan struct{}

	logger *logrus.Logger
}

// NewPlayer создает контроллер для видео с заданным декодером.
// stepInterval <= 0 дает интервал по умолчанию.
func NewPlayer(dec Decoder, info models.VideoInfo, stepInterval time.Duration, logger *logrus.Logger) *Player {
	if stepInterval <= 0 {
		stepInterval = DefaultStepInterval
	}
	return &Player{
		dec:          dec,
		info:         info,
		state:        StateNormalPaused,
		stepInterval: stepInterval,
		logger:       logger,
	}
}

// FrameFromTime переводит позицию в секундах в номер кадра: floor(t * fps),
// с приведением к [0, frame_count-1]. Отображение с потерями: обратный
// перевод frame/fps не обязан давать тот же кадр при дробном fps —
// это ожидаемый дрейф, именно такое отображение выравнивает аннотации.
func (p *Player) FrameFromTime(sec float64) int {
	frame := int(math.Floor(sec * p.info.FPS))
	return p.clampFrame(frame)
}

// TimeForFrame переводит номер кадра в позицию в секундах с приведением
// к [0, duration]
func (p *Player) TimeForFrame(frame int) float64 {
	if p.info.FPS <= 0 {
		return 0
	}
	sec := float64(frame) / p.info.FPS
	if sec < 0 {
		sec = 0
	}
	if sec > p.info.Duration {
		sec = p.info.Duration
	}
	return sec
}

func (p *Player) clampFrame(frame int) int {
	if frame < 0 {
		return 0
	}
	if max := p.info.FrameCount - 1; frame > max {
		if max < 0 {
			return 0
		}
		return max
	}
	return frame
}

// State возвращает текущее состояние контроллера
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentFrame возвращает текущий кадр: в покадровом режиме — авторитетный
// счетчик, в обычном — производное от позиции декодера значение
func (p *Player) CurrentFrame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentFrameLocked()
}

func (p *Player) currentFrameLocked() int {
	if p.state == StateStepPaused || p.state == StateStepPlaying {
		return p.frame
	}
	return p.FrameFromTime(p.dec.CurrentTime())
}

// ToggleMode переключает обычный и покадровый режимы, синхронизируя
// позицию в обе стороны: вход в покадровый режим снимает текущую позицию
// декодера в счетчик кадра, выход возвращает позицию счетчика декодеру
// и возобновляет нативное воспроизведение, если оно было активно.
func (p *Player) ToggleMode() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateNormalPaused:
		p.frame = p.FrameFromTime(p.dec.CurrentTime())
		p.state = StateStepPaused
	case StateNormalPlaying:
		p.dec.Pause()
		p.frame = p.FrameFromTime(p.dec.CurrentTime())
		p.state = StateStepPlaying
		p.startStepperLocked()
	case StateStepPaused:
		p.stopStepperLocked()
		p.dec.SetCurrentTime(p.TimeForFrame(p.frame))
		p.state = StateNormalPaused
	case StateStepPlaying:
		p.stopStepperLocked()
		p.dec.SetCurrentTime(p.TimeForFrame(p.frame))
		p.playNativeLocked()
		p.state = StateNormalPlaying
	}
	p.logger.Debugf("Режим воспроизведения переключен: %s", p.state)
}

// TogglePlayPause запускает или останавливает воспроизведение.
// В покадровом режиме управляет степпером с фиксированным тактом,
// в обычном — нативным воспроизведением декодера.
func (p *Player) TogglePlayPause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateNormalPaused:
		p.playNativeLocked()
		p.state = StateNormalPlaying
	case StateNormalPlaying:
		p.dec.Pause()
		p.state = StateNormalPaused
	case StateStepPaused:
		p.state = StateStepPlaying
		p.startStepperLocked()
	case StateStepPlaying:
		p.stopStepperLocked()
		p.state = StateStepPaused
	}
}

// playNativeLocked запускает нативное воспроизведение. Отказ декодера
// (политика автовоспроизведения) глотается и не меняет состояние насильно.
func (p *Player) playNativeLocked() {
	if err := p.dec.Play(); err != nil {
		p.logger.Debugf("Декодер отклонил запуск воспроизведения: %v", err)
	}
}

// SeekToFrame останавливает активный степпер, приводит кадр к допустимому
// диапазону и перематывает декодер. В покадровом режиме дополнительно
// форсирует отрисовку нового кадра.
func (p *Player) SeekToFrame(frame int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekToFrameLocked(frame)
}

func (p *Player) seekToFrameLocked(frame int) {
	if p.state == StateStepPlaying {
		p.stopStepperLocked()
		p.state = StateStepPaused
	}

	frame = p.clampFrame(frame)
	p.frame = frame
	p.dec.SetCurrentTime(p.TimeForFrame(frame))

	if p.state == StateStepPaused {
		p.forceRepaintLocked()
	}
}

// forceRepaintLocked заставляет декодер отрисовать кадр на паузе:
// одной установки позиции недостаточно на части декодеров, поэтому
// воспроизведение запускается и немедленно останавливается.
func (p *Player) forceRepaintLocked() {
	if err := p.dec.Play(); err != nil {
		return
	}
	p.dec.Pause()
}

// StepFrame сдвигает позицию на один кадр вперед (+1) или назад (-1)
func (p *Player) StepFrame(direction int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.currentFrameLocked()
	if direction >= 0 {
		target++
	} else {
		target--
	}
	p.seekToFrameLocked(target)
}

// EnterFrameByFrameAt ставит на паузу, перематывает на кадр и включает
// покадровый режим, если он еще не включен. Каноническая точка входа
// "перейти к этой правке" для undo/redo и списков в UI.
func (p *Player) EnterFrameByFrameAt(frame int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateNormalPlaying:
		p.dec.Pause()
		p.state = StateStepPaused
	case StateNormalPaused:
		p.state = StateStepPaused
	case StateStepPlaying:
		p.stopStepperLocked()
		p.state = StateStepPaused
	}
	p.seekToFrameLocked(frame)
}

// startStepperLocked запускает таймер покадрового продвижения
func (p *Player) startStepperLocked() {
	p.stepGen++
	gen := p.stepGen
	quit := make(chan struct{})
	p.stepQuit = quit

	go func() {
		ticker := time.NewTicker(p.stepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				p.stepTick(gen)
			}
		}
	}()
}

// stepTick продвигает кадр на один по такту степпера. Проверка поколения
// отсекает устаревший таймер, переживший остановку.
func (p *Player) stepTick(gen int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStepPlaying || gen != p.stepGen {
		return
	}

	next := p.frame + 1
	if next > p.info.FrameCount-1 {
		// Дошли до конца видео — останавливаем степпер
		p.stopStepperLocked()
		p.state = StateStepPaused
		return
	}

	p.frame = next
	p.dec.SetCurrentTime(p.TimeForFrame(next))
	p.forceRepaintLocked()
}

// stopStepperLocked останавливает таймер степпера, если он запущен
func (p *Player) stopStepperLocked() {
	p.stepGen++
	if p.stepQuit != nil {
		close(p.stepQuit)
		p.stepQuit = nil
	}
}

// Close освобождает ресурсы контроллера. Обязателен при закрытии сессии:
// незакрытый таймер продолжил бы двигать кадр после ухода пользователя.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopStepperLocked()
	if p.state == StateNormalPlaying || p.state == StateStepPlaying {
		p.dec.Pause()
	}
}
