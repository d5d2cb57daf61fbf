package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Measurement devices connect from arbitrary local origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsReadLimit  = 4096
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// handleVitalsStream upgrades to a websocket and ingests vitals
// samples pushed by the measurement device. Each message is one JSON
// sample; valid samples are published to live subscribers and
// persisted as the latest reading.
func (s *Server) handleVitalsStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	uid := userID(c)
	log := s.logger.WithField("user_id", uid)
	log.Info("Vitals stream connected")

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	for {
		var sample domain.VitalsSample
		if err := conn.ReadJSON(&sample); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Vitals stream closed unexpectedly")
			} else {
				log.Info("Vitals stream disconnected")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if sample.CapturedAt.IsZero() {
			sample.CapturedAt = time.Now().UTC()
		}

		s.vitals.Publish(uid, sample)

		if !sample.IsValid() {
			log.WithFields(logrus.Fields{
				"heart_rate_valid":     sample.HeartRateValid,
				"breathing_rate_valid": sample.BreathingRateValid,
			}).Debug("Discarding invalid vitals sample for persistence")
			continue
		}

		if err := s.store.SaveVitals(c.Request.Context(), uid, sample); err != nil {
			log.WithError(err).Error("Failed to persist vitals sample")
		}
	}
}

// handleVitalsWatch upgrades to a websocket and forwards live vitals
// samples to an observing client (the mobile UI) as the device pushes
// them on the stream endpoint.
func (s *Server) handleVitalsWatch(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	uid := userID(c)
	log := s.logger.WithField("user_id", uid)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	samples, err := s.vitals.Subscribe(ctx, uid)
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to vitals")
		return
	}

	// Drain control frames and detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info("Vitals watch connected")
	for sample := range samples {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(sample); err != nil {
			log.Info("Vitals watch disconnected")
			return
		}
	}
}

// pingLoop keeps the device connection alive until the reader exits.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
