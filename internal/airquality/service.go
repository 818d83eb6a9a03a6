package airquality

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Pairer discovers a nearby sensor over the platform's short-range radio.
type Pairer interface {
	Pair(ctx context.Context) (DeviceRef, error)
}

// Observer receives acquisition outcomes, e.g. for metrics.
type Observer interface {
	ObserveAcquisition(source Source, outcome string, elapsed time.Duration)
	ObserveBackgroundFailure(stage string)
}

type nopObserver struct{}

func (nopObserver) ObserveAcquisition(Source, string, time.Duration) {}
func (nopObserver) ObserveBackgroundFailure(string)                  {}

// Config bounds every blocking step of an acquisition.
type Config struct {
	LocateTimeout  time.Duration
	FetchTimeout   time.Duration
	PersistTimeout time.Duration
	Retry          BackoffConfig
}

// DefaultConfig returns the recommended deadlines: 10s to locate, 15s to
// fetch, 5s for a background write, no retries.
func DefaultConfig() Config {
	return Config{
		LocateTimeout:  10 * time.Second,
		FetchTimeout:   15 * time.Second,
		PersistTimeout: 5 * time.Second,
		Retry: BackoffConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// DeviceResult is the outcome of a device acquisition.
type DeviceResult struct {
	State        FetchState `json:"state"`
	Device       *DeviceRef `json:"device,omitempty"`
	BatteryLevel *int       `json:"batteryLevel,omitempty"`
}

// Service orchestrates location, provider, device and store for each
// identity's fetch lifecycle.
type Service struct {
	store    ReadingStore
	provider Provider
	device   DeviceSource
	pairing  Pairing
	pairer   Pairer
	sinks    []ReadingSink
	observer Observer
	logger   *slog.Logger
	cfg      Config

	mu         sync.Mutex
	lifecycles map[Identity]*Lifecycle
	closed     bool // no background writes start once set

	background sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithDevice enables the device path.
func WithDevice(src DeviceSource, pairing Pairing, pairer Pairer) Option {
	return func(s *Service) {
		s.device = src
		s.pairing = pairing
		s.pairer = pairer
	}
}

// WithSinks adds best-effort destinations for accepted readings.
func WithSinks(sinks ...ReadingSink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig replaces the deadlines. Unset or non-positive timeouts keep
// their defaults, since an expired deadline fails every acquisition.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		def := DefaultConfig()
		if cfg.LocateTimeout <= 0 {
			cfg.LocateTimeout = def.LocateTimeout
		}
		if cfg.FetchTimeout <= 0 {
			cfg.FetchTimeout = def.FetchTimeout
		}
		if cfg.PersistTimeout <= 0 {
			cfg.PersistTimeout = def.PersistTimeout
		}
		s.cfg = cfg
	}
}

// NewService creates a new Service. provider may be nil, in which case every
// geo acquisition fails with not_configured.
func NewService(store ReadingStore, provider Provider, opts ...Option) *Service {
	s := &Service{
		store:      store,
		provider:   provider,
		observer:   nopObserver{},
		logger:     slog.Default(),
		cfg:        DefaultConfig(),
		lifecycles: make(map[Identity]*Lifecycle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lifecycle(id Identity) *Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	lc, ok := s.lifecycles[id]
	if !ok {
		lc = NewLifecycle()
		s.lifecycles[id] = lc
	}
	return lc
}

// State returns the identity's current fetch state.
func (s *Service) State(id Identity) FetchState {
	return s.lifecycle(id).State()
}

// Abandon discards the identity's in-flight acquisition, if any.
func (s *Service) Abandon(id Identity) FetchState {
	lc := s.lifecycle(id)
	if lc.Abandon() {
		s.logger.Debug("acquisition abandoned", "identity", id)
	}
	return lc.State()
}

// Acquire runs one geo acquisition: resolve a position, fetch the index for
// it, and settle the lifecycle. While an acquisition is already in flight for
// id it returns the Loading state without touching the provider.
func (s *Service) Acquire(ctx context.Context, id Identity, resolver Resolver) FetchState {
	lc := s.lifecycle(id)
	seq, ok := lc.Start()
	if !ok {
		s.logger.Debug("acquisition already in flight", "identity", id, "seq", seq)
		return lc.State()
	}

	start := time.Now()
	reading, err := s.acquireGeo(ctx, resolver)
	s.settle(id, lc, seq, SourceGeoAPI, reading, err, start)
	return lc.State()
}

func (s *Service) acquireGeo(ctx context.Context, resolver Resolver) (Reading, error) {
	if resolver == nil {
		return Reading{}, Ef(KindLocationUnsupported, "locate", "no positioning capability")
	}

	locateCtx, cancel := context.WithTimeout(ctx, s.cfg.LocateTimeout)
	coords, err := resolver.Resolve(locateCtx)
	cancel()
	if err != nil {
		if KindOf(err) == "" {
			err = E(KindLocationUnavailable, "locate", err)
		}
		return Reading{}, err
	}

	if s.provider == nil {
		return Reading{}, Ef(KindNotConfigured, "fetch", "no air quality provider configured")
	}

	return withRetry(ctx, s.cfg.Retry, func(ctx context.Context) (Reading, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()

		r, err := s.provider.FetchByCoordinates(fetchCtx, coords)
		if err != nil {
			return Reading{}, Classify(err, s.provider.Name(), KindNetwork)
		}
		return r, nil
	})
}

// AcquireFromDevice runs one device acquisition through the same lifecycle as
// the geo path, so the two never overlap for one identity.
func (s *Service) AcquireFromDevice(ctx context.Context, id Identity) DeviceResult {
	lc := s.lifecycle(id)
	seq, ok := lc.Start()
	if !ok {
		return DeviceResult{State: lc.State()}
	}

	start := time.Now()
	ref, dr, err := s.acquireDevice(ctx)
	s.settle(id, lc, seq, SourceDevice, dr.Reading, err, start)

	res := DeviceResult{State: lc.State()}
	if !ref.IsZero() {
		res.Device = &ref
	}
	if err == nil {
		battery := dr.BatteryLevel
		res.BatteryLevel = &battery
	}
	return res
}

func (s *Service) acquireDevice(ctx context.Context) (DeviceRef, DeviceReading, error) {
	ref, ok, err := s.PairedDevice()
	if err != nil {
		return DeviceRef{}, DeviceReading{}, err
	}
	if !ok {
		return DeviceRef{}, DeviceReading{}, Ef(KindNotPaired, "device", "no paired device")
	}
	if s.device == nil {
		return ref, DeviceReading{}, Ef(KindConnectionFailed, "device", "device transport not configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	dr, err := s.device.FetchFromDevice(fetchCtx, ref)
	if err != nil {
		return ref, DeviceReading{}, Classify(err, "device", KindConnectionFailed)
	}
	return ref, dr, nil
}

func (s *Service) settle(id Identity, lc *Lifecycle, seq uint64, source Source, r Reading, err error, start time.Time) {
	elapsed := time.Since(start)

	if err != nil {
		if KindOf(err) == "" {
			s.logger.Warn("unclassified acquisition error", "identity", id, "error", err)
			err = E(KindNetwork, "acquire", err)
		}
		if !lc.Fail(seq, err) {
			s.logger.Debug("discarding stale failure", "identity", id, "seq", seq, "error", err)
			s.observer.ObserveAcquisition(source, "stale", elapsed)
			return
		}
		s.logger.Info("acquisition failed",
			"identity", id,
			"source", source,
			"kind", KindOf(err),
			"error", err,
		)
		s.observer.ObserveAcquisition(source, string(KindOf(err)), elapsed)
		return
	}

	if !lc.Succeed(seq, r) {
		s.logger.Debug("discarding stale reading", "identity", id, "seq", seq)
		s.observer.ObserveAcquisition(source, "stale", elapsed)
		return
	}

	s.store.RecordCurrent(id, r)
	s.observer.ObserveAcquisition(source, "success", elapsed)
	s.logger.Info("acquisition succeeded",
		"identity", id,
		"source", source,
		"index", r.Index,
		"location", r.LocationLabel,
	)
	s.persist(id, r)
}

// persist appends to history and fans out to sinks without blocking the
// Success transition. Failures are logged and counted, never surfaced.
func (s *Service) persist(id Identity, r Reading) {
	s.goBackground("history", func(ctx context.Context) error {
		return s.store.AppendHistory(ctx, id, r)
	}, id)

	for _, sink := range s.sinks {
		sink := sink
		s.goBackground("sink:"+sink.Name(), func(ctx context.Context) error {
			return sink.Publish(ctx, id, r)
		}, id)
	}
}

func (s *Service) goBackground(stage string, fn func(context.Context) error, id Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("service closed; background write dropped", "stage", stage, "identity", id)
		s.observer.ObserveBackgroundFailure(stage)
		return
	}
	s.background.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			s.logger.Warn("background write failed", "stage", stage, "identity", id, "error", err)
			s.observer.ObserveBackgroundFailure(stage)
		}
	}()
}

// Current returns the identity's latest accepted reading.
func (s *Service) Current(id Identity) (Reading, bool) {
	return s.store.Current(id)
}

// History returns the identity's readings, newest first. An identity with no
// history yields an empty, non-nil slice.
func (s *Service) History(ctx context.Context, id Identity) ([]Reading, error) {
	out, err := s.store.QueryHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Reading{}
	}
	return out, nil
}

// PairedDevice returns the device in the pairing slot.
func (s *Service) PairedDevice() (DeviceRef, bool, error) {
	if s.pairing == nil {
		return DeviceRef{}, false, nil
	}
	ref, ok, err := s.pairing.Load()
	if err != nil {
		return DeviceRef{}, false, E(KindConnectionFailed, "pairing", err)
	}
	return ref, ok, nil
}

// Pair stores ref in the pairing slot, replacing any previous device.
func (s *Service) Pair(ref DeviceRef) error {
	if ref.IsZero() {
		return Ef(KindNotPaired, "pair", "device id is required")
	}
	if s.pairing == nil {
		return Ef(KindConnectionFailed, "pair", "pairing store not configured")
	}
	if err := s.pairing.Save(ref); err != nil {
		return E(KindConnectionFailed, "pair", err)
	}
	s.logger.Info("device paired", "device_id", ref.ID, "device_name", ref.Name)
	return nil
}

// Scan discovers a device over the radio and pairs it.
func (s *Service) Scan(ctx context.Context) (DeviceRef, error) {
	if s.pairer == nil {
		return DeviceRef{}, Ef(KindConnectionFailed, "scan", "bluetooth is not available")
	}
	ref, err := s.pairer.Pair(ctx)
	if err != nil {
		return DeviceRef{}, Classify(err, "scan", KindConnectionFailed)
	}
	if err := s.Pair(ref); err != nil {
		return DeviceRef{}, err
	}
	return ref, nil
}

// Unpair clears the pairing slot.
func (s *Service) Unpair() error {
	if s.pairing == nil {
		return nil
	}
	if err := s.pairing.Clear(); err != nil {
		return E(KindConnectionFailed, "unpair", err)
	}
	s.logger.Info("device unpaired")
	return nil
}

// Close stops new background writes and waits for the ones in flight to
// finish or ctx to end. Acquisitions still work after Close but are no
// longer persisted or published.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("background writes still pending"), ctx.Err())
	}
}
