package core

import (
	"time"

	"github.com/leap-fish/necs/esync/srvsync"
)

// GameLoop drives the server at a fixed tick rate and flushes esync state
// after every step.
type GameLoop struct {
	server   *Server
	tickRate int
	stopChan chan struct{}
}

func NewGameLoop(server *Server, tickRate int) *GameLoop {
	if tickRate <= 0 {
		tickRate = 50
	}
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		stopChan: make(chan struct{}),
	}
}

func (g *GameLoop) Run() {
	dt := time.Second / time.Duration(g.tickRate)
	ticker := time.NewTicker(dt)
	defer ticker.Stop()

	g.server.log.Info().Int("tickRate", g.tickRate).Msg("game loop started")

	for {
		select {
		case <-g.stopChan:
			g.server.log.Info().Msg("game loop stopped")
			return
		case <-ticker.C:
			g.tick(dt)
		}
	}
}

func (g *GameLoop) Stop() {
	close(g.stopChan)
}

func (g *GameLoop) tick(dt time.Duration) {
	g.server.Step(dt)

	if err := srvsync.DoSync(); err != nil {
		g.server.log.Warn().Err(err).Msg("sync error")
	}
}
