package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/api"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Patients    int
	Days        int
	CancelRatio float64
	ReadRatio   float64
}

type session struct {
	ID    string
	Token string
}

type slotRef struct {
	Date string
	Time string
}

type booking struct {
	ScheduleID string
	Patient    session
}

// DataPool holds the sessions and slots workers race over. Every worker
// draws from the same small slot set so bookings collide on purpose.
type DataPool struct {
	Doctor   session
	Patients []session
	Slots    []slotRef

	mu     sync.Mutex
	active []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.active = append(dp.active, b)
}

// TakeBooking removes a random active booking so two workers never cancel the same one.
func (dp *DataPool) TakeBooking() (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.active) == 0 {
		return booking{}, false
	}
	idx := rand.Intn(len(dp.active))
	b := dp.active[idx]
	dp.active[idx] = dp.active[len(dp.active)-1]
	dp.active = dp.active[:len(dp.active)-1]
	return b, true
}

func (dp *DataPool) randomPatient() session {
	return dp.Patients[rand.Intn(len(dp.Patients))]
}

func (dp *DataPool) randomSlot() slotRef {
	return dp.Slots[rand.Intn(len(dp.Slots))]
}

type Simulator struct {
	config  SimConfig
	client  *apiClient
	pool    *DataPool
	metrics *Metrics
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		Patients:    getInt("SIM_PATIENTS", 50),
		Days:        getInt("SIM_DAYS", 2),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
	}
	if cfg.Workers < 1 || cfg.Patients < 1 || cfg.Days < 1 {
		logger.Fatal().Msg("SIM_WORKERS, SIM_PATIENTS and SIM_DAYS must be positive")
	}

	logger.Info().Str("api", cfg.APIBaseURL).Msg("all traffic comes from one IP; start the server with RATE_LIMIT_RPS=0")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := &Simulator{
		config:  cfg,
		client:  &apiClient{base: cfg.APIBaseURL, http: &http.Client{Timeout: 10 * time.Second}},
		metrics: &Metrics{},
		log:     logger,
	}

	pool, err := sim.setup(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup failed")
	}
	sim.pool = pool

	logger.Info().
		Int("workers", cfg.Workers).
		Int("patients", len(pool.Patients)).
		Int("slots", len(pool.Slots)).
		Dur("duration", cfg.Duration).
		Msg("starting simulation")

	start := time.Now()
	sim.Run(ctx)
	sim.metrics.Print(time.Since(start), cfg.Workers)

	if err := sim.verify(context.Background()); err != nil {
		logger.Error().Err(err).Msg("consistency check failed")
		os.Exit(1)
	}
	logger.Info().Msg("consistency check passed: no slot booked twice")
}

// setup registers a fresh doctor with windows and a set of patients so each
// run starts from a known slot space.
func (s *Simulator) setup(ctx context.Context) (*DataPool, error) {
	runID := uuid.NewString()[:8]
	const password = "simulate"

	doc, err := s.client.signUp(ctx, "Dr. "+gofakeit.Name(),
		fmt.Sprintf("sim-%s-doctor@example.com", runID), password, string(auth.RoleDoctor))
	if err != nil {
		return nil, err
	}
	pool := &DataPool{Doctor: session{ID: doc.User.ID, Token: doc.Token}}

	today := time.Now().UTC()
	for day := 1; day <= s.config.Days; day++ {
		date := today.AddDate(0, 0, day).Format(availability.DateLayout)
		win, err := call[api.WindowResponse](ctx, s.client, http.MethodPost, "/availability", doc.Token,
			api.CreateAvailabilityRequest{Date: date, StartTime: "09:00", EndTime: "11:00", SlotMinutes: 15})
		if err != nil {
			return nil, fmt.Errorf("create window for %s: %w", date, err)
		}
		for _, slot := range win.Slots {
			pool.Slots = append(pool.Slots, slotRef{Date: date, Time: slot.Time.String()})
		}
	}

	for i := 0; i < s.config.Patients; i++ {
		p, err := s.client.signUp(ctx, gofakeit.Name(),
			fmt.Sprintf("sim-%s-patient%d@example.com", runID, i), password, string(auth.RolePatient))
		if err != nil {
			return nil, err
		}
		pool.Patients = append(pool.Patients, session{ID: p.User.ID, Token: p.Token})
	}

	s.log.Info().Str("doctor_id", pool.Doctor.ID).Int("slots", len(pool.Slots)).Msg("setup complete")
	return pool, nil
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}
	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context) {
	for ctx.Err() == nil {
		r := rand.Float64()
		switch {
		case r < s.config.CancelRatio:
			s.doCancel(ctx)
		case r < s.config.CancelRatio+s.config.ReadRatio:
			if rand.Intn(2) == 0 {
				s.doListSlots(ctx)
			} else {
				s.doListMine(ctx)
			}
		default:
			s.doBooking(ctx)
		}
	}
}

// classify maps a response error onto a metrics outcome. A cancelled run
// context returns ok=false so in-flight requests at shutdown are not counted.
func classify(ctx context.Context, err error) (outcome, bool) {
	if err == nil {
		return outcomeSuccess, true
	}
	if ctx.Err() != nil {
		return outcomeError, false
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return outcomeConflict, true
	}
	return outcomeError, true
}

func (s *Simulator) doBooking(ctx context.Context) {
	patient := s.pool.randomPatient()
	slot := s.pool.randomSlot()

	start := time.Now()
	sch, err := call[api.ScheduleResponse](ctx, s.client, http.MethodPost, "/schedules", patient.Token,
		api.CreateScheduleRequest{DoctorID: s.pool.Doctor.ID, Date: slot.Date, SlotTime: slot.Time})
	o, ok := classify(ctx, err)
	if !ok {
		return
	}
	s.metrics.Booking.Record(time.Since(start), o)

	switch o {
	case outcomeSuccess:
		s.pool.AddBooking(booking{ScheduleID: sch.ID, Patient: patient})
	case outcomeError:
		s.log.Warn().Err(err).Str("date", slot.Date).Str("slot", slot.Time).Msg("booking failed")
	}
}

func (s *Simulator) doCancel(ctx context.Context) {
	b, found := s.pool.TakeBooking()
	if !found {
		s.doBooking(ctx)
		return
	}

	start := time.Now()
	_, err := call[api.ScheduleResponse](ctx, s.client, http.MethodPut, "/schedules/"+b.ScheduleID+"/cancel", b.Patient.Token, nil)
	o, ok := classify(ctx, err)
	if !ok {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), o)
	if o == outcomeError {
		s.log.Warn().Err(err).Str("schedule_id", b.ScheduleID).Msg("cancel failed")
	}
}

func (s *Simulator) doListSlots(ctx context.Context) {
	slot := s.pool.randomSlot()
	patient := s.pool.randomPatient()

	start := time.Now()
	_, err := call[[]api.FreeSlotResponse](ctx, s.client, http.MethodGet,
		"/availability/slots?doctorId="+s.pool.Doctor.ID+"&date="+slot.Date, patient.Token, nil)
	if o, ok := classify(ctx, err); ok {
		s.metrics.ListSlots.Record(time.Since(start), o)
	}
}

func (s *Simulator) doListMine(ctx context.Context) {
	patient := s.pool.randomPatient()

	start := time.Now()
	_, err := call[[]api.ScheduleResponse](ctx, s.client, http.MethodGet, "/schedules/my", patient.Token, nil)
	if o, ok := classify(ctx, err); ok {
		s.metrics.ListMine.Record(time.Since(start), o)
	}
}

// verify checks that no slot holds two live schedules and that the slot flags
// agree with the live schedules.
func (s *Simulator) verify(ctx context.Context) error {
	schedules, err := call[[]api.ScheduleResponse](ctx, s.client, http.MethodGet, "/schedules/my", s.pool.Doctor.Token, nil)
	if err != nil {
		return fmt.Errorf("list doctor schedules: %w", err)
	}

	live := make(map[slotRef]int)
	for _, sch := range schedules {
		if sch.Status == schedule.StatusScheduled {
			live[slotRef{Date: sch.Date, Time: sch.SlotTime.String()}]++
		}
	}

	var violations int
	for ref, n := range live {
		if n > 1 {
			violations++
			s.log.Error().Str("date", ref.Date).Str("slot", ref.Time).Int("schedules", n).Msg("slot double booked")
		}
	}

	windows, err := call[[]api.WindowResponse](ctx, s.client, http.MethodGet,
		"/availability/doctor/"+s.pool.Doctor.ID, s.pool.Doctor.Token, nil)
	if err != nil {
		return fmt.Errorf("list doctor windows: %w", err)
	}
	for _, w := range windows {
		for _, slot := range w.Slots {
			ref := slotRef{Date: w.Date, Time: slot.Time.String()}
			if booked := !slot.Available; booked != (live[ref] > 0) {
				violations++
				s.log.Error().Str("date", ref.Date).Str("slot", ref.Time).
					Bool("flag_booked", booked).Int("live_schedules", live[ref]).
					Msg("slot flag disagrees with schedules")
			}
		}
	}

	s.log.Info().Int("live_schedules", len(live)).Int("slots", len(s.pool.Slots)).Msg("verified")
	if violations > 0 {
		return fmt.Errorf("%d consistency violations", violations)
	}
	return nil
}

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
