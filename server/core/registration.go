package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/automoto/arrowflight/master"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoadSource reports what a range is currently serving.
type LoadSource interface {
	ClientCount() int
	ArrowCount() int
}

// Registration registers a range with the master directory and keeps it
// alive with heartbeats.
type Registration struct {
	masterURL string
	rangeID   string
	info      master.RegisterRequest
	load      LoadSource
	interval  time.Duration
	client    *http.Client
	log       zerolog.Logger
	stopCh    chan struct{}
}

// NewRegistration prepares a registration. name, address, arena and version
// are sent as given; the load fields are filled from load on every request.
func NewRegistration(masterURL, name, address, arena, version string, interval time.Duration, load LoadSource) *Registration {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Registration{
		masterURL: masterURL,
		info: master.RegisterRequest{
			Name:    name,
			Address: address,
			Arena:   arena,
			Version: version,
		},
		load:     load,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log.With().Str("component", "registration").Logger(),
		stopCh:   make(chan struct{}),
	}
}

func (r *Registration) Start() {
	if err := r.register(); err != nil {
		r.log.Warn().Err(err).Msg("initial registration failed")
	}
	go r.heartbeatLoop()
}

func (r *Registration) Stop() {
	close(r.stopCh)
}

// RangeID is the id the master handed out, empty until registered.
func (r *Registration) RangeID() string { return r.rangeID }

func (r *Registration) register() error {
	req := r.info
	req.Observers = r.load.ClientCount()
	req.ActiveArrows = r.load.ArrowCount()

	var result master.RegisterResponse
	status, err := r.post("/ranges/register", req, &result)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("unexpected status: %d", status)
	}

	r.rangeID = result.ID
	r.log.Info().Str("id", r.rangeID).Msg("registered with master")
	return nil
}

func (r *Registration) heartbeatLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.sendHeartbeat(); err != nil {
				r.log.Warn().Err(err).Msg("heartbeat failed")
			}
		}
	}
}

func (r *Registration) sendHeartbeat() error {
	if r.rangeID == "" {
		return r.register()
	}

	status, err := r.post("/ranges/heartbeat", master.HeartbeatRequest{
		ID:           r.rangeID,
		Observers:    r.load.ClientCount(),
		ActiveArrows: r.load.ArrowCount(),
	}, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		r.log.Info().Msg("master lost our registration, re-registering")
		return r.register()
	}
	return fmt.Errorf("unexpected status: %d", status)
}

func (r *Registration) post(path string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := r.client.Post(r.masterURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode: %w", err)
		}
	}
	return resp.StatusCode, nil
}
