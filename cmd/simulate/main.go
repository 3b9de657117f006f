package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	"github.com/hackgods/gaci-appointment-queue/internal/logging"
)

// The simulator hammers a running api-server with concurrent bookings over
// a few dates and then checks that no date went over capacity and no slot
// was booked twice.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Days         int
	BookingRatio float64
	RevertRatio  float64
}

type DataPool struct {
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[len(latencies)*95/100]
	return avg, p50, p95
}

type Metrics struct {
	Create  OperationMetrics
	Confirm OperationMetrics
	Revert  OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	dates   []string
	slots   []string
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	logger := logging.New(getEnv("APP_ENV", "dev")).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("days", cfg.Days).
		Msg("simulator starting")

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		slots:  appointment.OfficeSchedule.Labels(),
		log:    logger,
	}
	start := time.Now().AddDate(0, 0, 1)
	for i := 0; i < cfg.Days; i++ {
		sim.dates = append(sim.dates, start.AddDate(0, 0, i).Format("2006-01-02"))
	}

	sim.Run()
	sim.PrintReport()

	if err := sim.Verify(context.Background()); err != nil {
		logger.Error().Err(err).Msg("invariant check failed")
		os.Exit(1)
	}
	logger.Info().Msg("capacity and slot invariants hold")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Days:         getInt("SIM_DAYS", 3),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		RevertRatio:  getFloat("SIM_REVERT_RATIO", 0.1),
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.RevertRatio:
				s.doRevert(ctx, rng)
			default:
				s.doRead(ctx)
			}
		}
	}
}

// doBooking creates a waiting entry and immediately tries to confirm it
// into a random slot.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	body := map[string]any{
		"full_name":       gofakeit.Name(),
		"primary_contact": gofakeit.Phone(),
		"address":         gofakeit.Street(),
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, latency, err := s.do(ctx, http.MethodPost, "/appointments", body, &created)
	s.metrics.Create.Record(latency, err == nil && status == http.StatusCreated, false)
	if err != nil || created.ID == uuid.Nil {
		return
	}
	s.pool.AddAppointment(created.ID)

	confirm := map[string]string{
		"date": s.dates[rng.Intn(len(s.dates))],
		"time": s.slots[rng.Intn(len(s.slots))],
	}
	status, latency, err = s.do(ctx, http.MethodPost, "/appointments/"+created.ID.String()+"/confirm", confirm, nil)
	s.metrics.Confirm.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doRevert(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	status, latency, err := s.do(ctx, http.MethodPost, "/appointments/"+id.String()+"/revert", nil, nil)
	s.metrics.Revert.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doRead(ctx context.Context) {
	status, latency, err := s.do(ctx, http.MethodGet, "/waiting-list", nil, nil)
	s.metrics.Read.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) do(ctx context.Context, method, path string, body, out any) (int, time.Duration, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator", "simulator")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
	}
	return resp.StatusCode, latency, nil
}

// Verify reads the agenda back and checks both booking invariants.
func (s *Simulator) Verify(ctx context.Context) error {
	var settings struct {
		DailyLimit int `json:"daily_limit"`
	}
	if _, _, err := s.do(ctx, http.MethodGet, "/settings", nil, &settings); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var agenda []struct {
		ID          uuid.UUID `json:"id"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if _, _, err := s.do(ctx, http.MethodGet, "/agenda", nil, &agenda); err != nil {
		return fmt.Errorf("load agenda: %w", err)
	}

	perDay := make(map[string]int)
	seen := make(map[int64]uuid.UUID)
	for _, a := range agenda {
		if prev, dup := seen[a.ScheduledAt.Unix()]; dup {
			return fmt.Errorf("slot %s booked by %s and %s", a.ScheduledAt, prev, a.ID)
		}
		seen[a.ScheduledAt.Unix()] = a.ID
		perDay[a.ScheduledAt.Format("2006-01-02")]++
	}
	for day, n := range perDay {
		if n > settings.DailyLimit {
			return fmt.Errorf("%s has %d confirmed appointments, limit %d", day, n, settings.DailyLimit)
		}
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Dates: %s\n", strings.Join(s.dates, ", "))
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Revert", &s.metrics.Revert)
	printOperationReport("Waiting list", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
