package player

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"
)

// CaptureTimeout предел ожидания завершения перемотки при захвате кадра
const CaptureTimeout = 2 * time.Second

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// placeholder возвращает заглушку миниатюры (серый PNG 16x9)
func placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 16, 9))
		gray := color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
		for y := 0; y < 9; y++ {
			for x := 0; x < 16; x++ {
				img.Set(x, y, gray)
			}
		}
		var buf bytes.Buffer
		// Кодирование константной картинки не может завершиться ошибкой
		_ = png.Encode(&buf, img)
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}

// CaptureThumbnail захватывает миниатюру кадра. Перематывает декодер и
// ждет сигнала завершения перемотки не дольше CaptureTimeout: неисправный
// декодер может не подать сигнал никогда, и тогда вместо зависания
// возвращается заглушка. Ошибки захвата тоже дают заглушку — операция
// никогда не возвращает ошибку наружу.
func (p *Player) CaptureThumbnail(frame int) []byte {
	frame = p.clampFrame(frame)
	p.dec.SetCurrentTime(p.TimeForFrame(frame))

	select {
	case <-p.dec.Seeked():
	case <-time.After(CaptureTimeout):
		p.logger.Warnf("Декодер не подтвердил перемотку на кадр %d, отдаем заглушку", frame)
		return placeholder()
	}

	if grabber, ok := p.dec.(Grabber); ok {
		data, err := grabber.GrabFrame(frame)
		if err != nil {
			p.logger.Warnf("Ошибка захвата кадра %d: %v", frame, err)
			return placeholder()
		}
		if len(data) > 0 {
			return data
		}
	}
	return placeholder()
}
