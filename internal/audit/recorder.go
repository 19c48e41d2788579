package audit

import (
	"context"

	"restoran-pos/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder transaction dışındaki audit kayıtlarını sınırlı bir kuyruk üzerinden
// arka planda yazar. Record hiçbir zaman bloklamaz; kuyruk doluysa kayıt düşürülür.
type Recorder struct {
	db    *gorm.DB
	queue chan Entry
	done  chan struct{}
}

func NewRecorder(db *gorm.DB, size int) *Recorder {
	if size <= 0 {
		size = 1
	}
	return &Recorder{
		db:    db,
		queue: make(chan Entry, size),
		done:  make(chan struct{}),
	}
}

func (r *Recorder) Record(e Entry) {
	select {
	case r.queue <- e:
	default:
		metrics.AuditDropped.Inc()
		zap.L().Warn("audit kuyruğu dolu, kayıt düşürüldü",
			zap.Uint("client_id", e.ClientID),
			zap.String("action", string(e.Action)),
		)
	}
}

// Run kuyruğu ctx iptal edilene kadar boşaltır, çıkmadan önce kalanları yazar
func (r *Recorder) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return nil
				}
			}
		}
	}
}

// Flush kuyrukta bekleyen kayıtları senkron olarak yazar. Run çalışmıyorken
// (testlerde) kullanılır.
func (r *Recorder) Flush() {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			return
		}
	}
}

// Wait Run dönene kadar bekler
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) write(e Entry) {
	if err := WriteLog(r.db, e); err != nil {
		metrics.AuditDropped.Inc()
		zap.L().Warn("audit log yazılamadı", zap.String("action", string(e.Action)), zap.Error(err))
	}
}
