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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/api"
	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/db"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
	"github.com/clinicdesk/appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	PatientLimit int
	DoctorLimit  int
	HorizonDays  int
}

type booked struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type DataPool struct {
	Patients     []uuid.UUID
	Doctors      []uuid.UUID
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) Count() int {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return len(dp.appointments)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
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

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, slowest time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Metrics struct {
	Booking  OperationMetrics
	Status   OperationMetrics
	ReadByID OperationMetrics
	Slots    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	loc     *time.Location
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal("SIM_WORKERS and SIM_DURATION must be > 0")
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("status", cfg.StatusRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, "simulate", log)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	accounts := directory.NewPgRepository(pgPool)
	doctors, err := accounts.ListIDsByRole(ctx, directory.RoleDoctor, cfg.DoctorLimit)
	if err != nil {
		log.Fatal("load doctors", zap.Error(err))
	}
	patients, err := accounts.ListIDsByRole(ctx, directory.RolePatient, cfg.PatientLimit)
	if err != nil {
		log.Fatal("load patients", zap.Error(err))
	}
	if len(doctors) == 0 || len(patients) == 0 {
		log.Fatal("no accounts to simulate with, run cmd/seed first")
	}
	log.Info("data pool loaded", zap.Int("doctors", len(doctors)), zap.Int("patients", len(patients)))

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{Doctors: doctors, Patients: patients},
		client: &http.Client{Timeout: 10 * time.Second},
		loc:    baseCfg.ClinicLocation,
	}

	sim.Run()
	sim.Report(log)
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   config.String("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     config.Duration("SIM_DURATION", 30*time.Second),
		Workers:      config.Int("SIM_WORKERS", 10),
		BookingRatio: config.Float("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  config.Float("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    config.Float("SIM_READ_RATIO", 0.3),
		PatientLimit: config.Int("SIM_PATIENT_LIMIT", 4000),
		DoctorLimit:  config.Int("SIM_DOCTOR_LIMIT", 20),
		HorizonDays:  config.Int("SIM_HORIZON_DAYS", 7),
	}

	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 1
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
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
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doConfirm(ctx, rng)
		case rng.Intn(2) == 0:
			s.doReadByID(ctx, rng)
		default:
			s.doSlots(ctx, rng)
		}
	}
}

// randomSlotTime picks a template slot on one of the next HorizonDays days.
// The small doctor pool makes conflicting requests common.
func (s *Simulator) randomSlotTime(rng *rand.Rand) time.Time {
	template := appointment.WorkingTemplate()
	slot := template[rng.Intn(len(template))]
	y, m, d := time.Now().In(s.loc).AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays)).Date()
	return time.Date(y, m, d, slot.Hour, slot.Minute, 0, 0, s.loc)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body := map[string]string{
		"doctor_id":    doctorID.String(),
		"scheduled_at": s.randomSlotTime(rng).Format(time.RFC3339),
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", directory.RolePatient, patientID, body, &created)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: created.ID, DoctorID: doctorID})
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPut, "/appointments/"+appt.ID.String()+"/status",
		directory.RoleDoctor, appt.DoctorID, map[string]string{"status": string(appointment.StatusConfirmed)}, nil)
	s.metrics.Status.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/"+appt.ID.String(), directory.RoleDoctor, appt.DoctorID, nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status, err)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := s.randomSlotTime(rng).Format(time.DateOnly)

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/available-slots?date=%s&include_leave=true", doctorID, date),
		directory.RolePatient, patientID, nil, nil)
	s.metrics.Slots.Record(time.Since(start), status, err)
}

func (s *Simulator) call(ctx context.Context, method, path string, role directory.Role, actorID uuid.UUID, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderActorID, actorID.String())
	req.Header.Set(api.HeaderActorRole, string(role))
	req.Header.Set(api.HeaderActorUsername, "sim-"+actorID.String()[:8])

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// Report logs one summary line per operation that ran at least once.
func (s *Simulator) Report(log *zap.Logger) {
	log.Info("simulation finished",
		zap.Duration("duration", s.config.Duration),
		zap.Int("workers", s.config.Workers),
		zap.Int("appointments_created", s.pool.Count()),
	)
	for _, op := range []struct {
		name string
		m    *OperationMetrics
	}{
		{"booking", &s.metrics.Booking},
		{"confirm", &s.metrics.Status},
		{"read_by_id", &s.metrics.ReadByID},
		{"available_slots", &s.metrics.Slots},
	} {
		if fields, ok := op.m.Fields(); ok {
			log.Info("operation summary", append([]zap.Field{zap.String("operation", op.name)}, fields...)...)
		}
	}
}

// Fields renders the counters and latency percentiles as log fields.
func (om *OperationMetrics) Fields() ([]zap.Field, bool) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return nil, false
	}
	avg, p50, p95, slowest := om.Stats()
	return []zap.Field{
		zap.Int64("total", total),
		zap.Int64("success", atomic.LoadInt64(&om.Success)),
		zap.Int64("conflict", atomic.LoadInt64(&om.Conflict)),
		zap.Int64("error", atomic.LoadInt64(&om.Error)),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", float64(atomic.LoadInt64(&om.Success))/float64(total)*100)),
		zap.Duration("avg", avg.Round(time.Millisecond)),
		zap.Duration("p50", p50.Round(time.Millisecond)),
		zap.Duration("p95", p95.Round(time.Millisecond)),
		zap.Duration("max", slowest.Round(time.Millisecond)),
	}, true
}
