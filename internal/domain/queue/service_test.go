package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/doctor"
	redisclient "github.com/medicore/medicore/internal/platform/redis"
	"github.com/medicore/medicore/internal/platform/websocket"
)

// -- Mock Appointment Repository --

type mockApptRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.appts {
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Date != nil && (a.ScheduledTime.Before(*filter.Date) || !a.ScheduledTime.Before(filter.Date.AddDate(0, 0, 1))) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockApptRepo) matching(doctorID uuid.UUID, from, to time.Time, statuses []string) []*Appointment {
	want := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.ScheduledTime.Before(from) || !a.ScheduledTime.Before(to) {
			continue
		}
		if want[a.Status] {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (m *mockApptRepo) CountByStatus(_ context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(doctorID, from, to, statuses)), nil
}

func (m *mockApptRepo) ListByStatus(_ context.Context, doctorID uuid.UUID, from, to time.Time, statuses []string) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(doctorID, from, to, statuses)
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

func (m *mockApptRepo) BookedTimes(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, a := range m.matching(doctorID, from, to, []string{StatusBooked, StatusConfirmed, StatusInProgress, StatusCompleted}) {
		out = append(out, a.ScheduledTime)
	}
	return out, nil
}

// -- Mock Doctor Status Machine --

type mockDoctors struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
	calls    []string
}

func newMockDoctors(ids ...uuid.UUID) *mockDoctors {
	m := &mockDoctors{statuses: make(map[uuid.UUID]string)}
	for _, id := range ids {
		m.statuses[id] = doctor.StatusAvailable
	}
	return m
}

func (m *mockDoctors) set(id uuid.UUID, status string) (*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	m.statuses[id] = status
	m.calls = append(m.calls, status)
	return &doctor.Doctor{ID: id, Status: status}, nil
}

func (m *mockDoctors) GetDoctor(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	return &doctor.Doctor{ID: id, Status: status}, nil
}

func (m *mockDoctors) MarkWithPatient(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	return m.set(id, doctor.StatusWithPatient)
}

func (m *mockDoctors) MarkAvailable(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	return m.set(id, doctor.StatusAvailable)
}

func (m *mockDoctors) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

func (m *mockDoctors) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// -- Recording Publisher --

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []websocket.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]websocket.Event(nil), p.events...)
}

// -- Mock Locker --

type mockLocker struct {
	mu    sync.Mutex
	busy  bool
	calls int
	days  []time.Time
}

func (l *mockLocker) WithDoctorDayLock(ctx context.Context, _ uuid.UUID, day time.Time, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.calls++
	l.days = append(l.days, day)
	busy := l.busy
	l.mu.Unlock()
	if busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

var clinicNow = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *mockApptRepo
	doctors  *mockDoctors
	pub      *recordingPublisher
	doctorID uuid.UUID
}

func newFixture() *fixture {
	doctorID := uuid.New()
	f := &fixture{
		repo:     newMockApptRepo(),
		doctors:  newMockDoctors(doctorID),
		pub:      &recordingPublisher{},
		doctorID: doctorID,
	}
	f.svc = NewService(f.repo, f.doctors)
	f.svc.SetPublisher(f.pub)
	f.svc.SetLocation(time.UTC)
	f.svc.nowFn = func() time.Time { return clinicNow }
	return f
}

func (f *fixture) book(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), NewAppointment{
		PatientID:     uuid.New(),
		DoctorID:      f.doctorID,
		ScheduledTime: at,
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return a
}

func TestService_Create_AssignsTicketsInArrivalOrder(t *testing.T) {
	f := newFixture()
	at := clinicNow.Add(2 * time.Hour)

	for i := 1; i <= 3; i++ {
		a := f.book(t, at)
		if a.QueuePosition != i {
			t.Errorf("booking %d: expected position %d, got %d", i, i, a.QueuePosition)
		}
		if a.EstimatedWaitMinutes != (i-1)*MinutesPerPatient {
			t.Errorf("booking %d: expected wait %d, got %d", i, (i-1)*MinutesPerPatient, a.EstimatedWaitMinutes)
		}
		if a.Status != StatusBooked {
			t.Errorf("expected booked, got %s", a.Status)
		}
	}

	events := f.pub.all()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Type != websocket.EventQueueUpdated {
			t.Errorf("unexpected event %s", ev.Type)
		}
		if len(ev.Targets) != 2 || ev.Targets[0] != websocket.ChannelDoctors || ev.Targets[1] != websocket.ChannelAdmin {
			t.Errorf("unexpected targets %v", ev.Targets)
		}
		if _, ok := ev.Payload.(CreatedPayload); !ok {
			t.Errorf("expected CreatedPayload, got %T", ev.Payload)
		}
	}
}

func TestService_Create_CountsOnlyActiveSameDay(t *testing.T) {
	f := newFixture()
	today := clinicNow.Add(time.Hour)

	cancelled := f.book(t, today)
	if _, err := f.svc.UpdateStatus(context.Background(), cancelled.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	done := f.book(t, today)
	if _, err := f.svc.UpdateStatus(context.Background(), done.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Tomorrow's queue is independent of today's.
	tomorrow := f.book(t, today.AddDate(0, 0, 1))
	if tomorrow.QueuePosition != 1 {
		t.Errorf("expected position 1 tomorrow, got %d", tomorrow.QueuePosition)
	}

	next := f.book(t, today)
	if next.QueuePosition != 1 || next.EstimatedWaitMinutes != 0 {
		t.Errorf("expected position 1 wait 0, got %d/%d", next.QueuePosition, next.EstimatedWaitMinutes)
	}
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture()
	zero, six := 0, 6

	tests := []struct {
		name string
		in   NewAppointment
		want error
	}{
		{"missing patient", NewAppointment{DoctorID: f.doctorID}, ErrPatientRequired},
		{"missing doctor", NewAppointment{PatientID: uuid.New()}, ErrDoctorIDRequired},
		{"severity zero", NewAppointment{PatientID: uuid.New(), DoctorID: f.doctorID, TriageSeverity: &zero}, ErrInvalidSeverity},
		{"severity six", NewAppointment{PatientID: uuid.New(), DoctorID: f.doctorID, TriageSeverity: &six}, ErrInvalidSeverity},
		{"yesterday", NewAppointment{PatientID: uuid.New(), DoctorID: f.doctorID, ScheduledTime: clinicNow.AddDate(0, 0, -1)}, ErrScheduledInPast},
		{"unknown doctor", NewAppointment{PatientID: uuid.New(), DoctorID: uuid.New()}, doctor.ErrDoctorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.pub.all()) != 0 {
		t.Errorf("rejected bookings must not broadcast")
	}
}

func TestService_Create_EarlierTodayAllowed(t *testing.T) {
	f := newFixture()
	a := f.book(t, clinicNow.Add(-time.Hour))
	if a.QueuePosition != 1 {
		t.Errorf("expected position 1, got %d", a.QueuePosition)
	}
}

func TestService_Create_ZeroTimeMeansNow(t *testing.T) {
	f := newFixture()
	a := f.book(t, time.Time{})
	if !a.ScheduledTime.Equal(clinicNow) {
		t.Errorf("expected %v, got %v", clinicNow, a.ScheduledTime)
	}
}

func TestService_Create_UsesDayLock(t *testing.T) {
	f := newFixture()
	locker := &mockLocker{}
	f.svc.SetLocker(locker)

	f.book(t, clinicNow.Add(3*time.Hour))
	if locker.calls != 1 {
		t.Fatalf("expected lock to be taken once, got %d", locker.calls)
	}
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if !locker.days[0].Equal(want) {
		t.Errorf("expected lock day %v, got %v", want, locker.days[0])
	}
}

func TestService_Create_LockBusy(t *testing.T) {
	f := newFixture()
	f.svc.SetLocker(&mockLocker{busy: true})

	_, err := f.svc.Create(context.Background(), NewAppointment{PatientID: uuid.New(), DoctorID: f.doctorID})
	if !errors.Is(err, ErrQueueBusy) {
		t.Fatalf("expected ErrQueueBusy, got %v", err)
	}
	if len(f.repo.appts) != 0 {
		t.Error("no appointment should be stored")
	}
	if len(f.pub.all()) != 0 {
		t.Error("no event should be published")
	}
}

func TestService_ConsultationScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.book(t, clinicNow.Add(time.Hour))
	b := f.book(t, clinicNow.Add(90*time.Minute))

	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusInProgress); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if got := f.doctors.status(f.doctorID); got != doctor.StatusWithPatient {
		t.Fatalf("expected with_patient, got %s", got)
	}

	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusCompleted); err != nil {
		t.Fatalf("complete a: %v", err)
	}
	if got := f.doctors.status(f.doctorID); got != doctor.StatusWithPatient {
		t.Errorf("doctor must stay busy while B waits, got %s", got)
	}

	// Tickets are never renumbered.
	stored, _ := f.repo.GetByID(ctx, b.ID)
	if stored.QueuePosition != 2 {
		t.Errorf("expected B to keep position 2, got %d", stored.QueuePosition)
	}

	if _, err := f.svc.UpdateStatus(ctx, b.ID, StatusInProgress); err != nil {
		t.Fatalf("start b: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, b.ID, StatusCompleted); err != nil {
		t.Fatalf("complete b: %v", err)
	}
	if got := f.doctors.status(f.doctorID); got != doctor.StatusAvailable {
		t.Errorf("expected available once the queue drains, got %s", got)
	}

	var statusEvents int
	for _, ev := range f.pub.all() {
		p, ok := ev.Payload.(StatusPayload)
		if !ok {
			continue
		}
		statusEvents++
		if len(ev.Targets) != 2 || ev.Targets[0] != websocket.ChannelAdmin || ev.Targets[1] != websocket.ChannelPatients {
			t.Errorf("unexpected targets %v", ev.Targets)
		}
		if p.DoctorID != f.doctorID {
			t.Errorf("unexpected doctor id %s", p.DoctorID)
		}
	}
	if statusEvents != 4 {
		t.Errorf("expected 4 status events, got %d", statusEvents)
	}
}

func TestService_UpdateStatus_Rejections(t *testing.T) {
	f := newFixture()
	a := f.book(t, clinicNow)
	before := len(f.pub.all())

	if _, err := f.svc.UpdateStatus(context.Background(), a.ID, "teleported"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), uuid.New(), StatusConfirmed); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	if len(f.pub.all()) != before {
		t.Error("rejected updates must not broadcast")
	}
	if f.doctors.callCount() != 0 {
		t.Error("rejected updates must not touch the doctor")
	}
}

func TestService_GetAvailableSlots(t *testing.T) {
	f := newFixture()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	f.book(t, day.Add(10*time.Hour+30*time.Minute))
	cancelled := f.book(t, day.Add(14*time.Hour))
	if _, err := f.svc.UpdateStatus(context.Background(), cancelled.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Off-grid bookings do not block any slot.
	f.book(t, day.Add(11*time.Hour+10*time.Minute))

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.doctorID, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(slots))
	}
	if slots[0].Time != "09:00" || slots[17].Time != "17:30" {
		t.Errorf("unexpected grid bounds %s..%s", slots[0].Time, slots[17].Time)
	}
	for _, s := range slots {
		wantAvailable := s.Time != "10:30"
		if s.Available != wantAvailable {
			t.Errorf("slot %s: expected available=%v", s.Time, wantAvailable)
		}
	}
}

func TestService_GetAvailableSlots_OtherDoctorDoesNotBlock(t *testing.T) {
	f := newFixture()
	other := uuid.New()
	f.doctors.statuses[other] = doctor.StatusAvailable
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Create(context.Background(), NewAppointment{
		PatientID: uuid.New(), DoctorID: other, ScheduledTime: day.Add(9 * time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots, _ := f.svc.GetAvailableSlots(context.Background(), f.doctorID, day)
	for _, s := range slots {
		if !s.Available {
			t.Errorf("slot %s should be free", s.Time)
		}
	}
}

func TestService_DoctorQueueAndStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.book(t, clinicNow.Add(2*time.Hour))
	second := f.book(t, clinicNow.Add(time.Hour))
	third := f.book(t, clinicNow.Add(3*time.Hour))
	dropped := f.book(t, clinicNow.Add(4*time.Hour))
	f.book(t, clinicNow.AddDate(0, 0, 1))

	if _, err := f.svc.UpdateStatus(ctx, first.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, dropped.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	queue, err := f.svc.DoctorQueue(ctx, f.doctorID)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 2 || queue[0].ID != second.ID || queue[1].ID != third.ID {
		t.Errorf("unexpected queue order")
	}

	stats, err := f.svc.DoctorStats(ctx, f.doctorID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// Total counts every appointment booked for today, cancelled ones included.
	if stats.TodayCompleted != 1 || stats.TodayPending != 2 || stats.TotalPatients != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestService_ListAppointments_InvalidStatus(t *testing.T) {
	f := newFixture()
	if _, _, err := f.svc.ListAppointments(context.Background(), ListFilter{Status: "lost"}, 20, 0); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}
