package handler

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/errorlog"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/notify"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

type MockMedicationService struct {
	mock.Mock
}

func (m *MockMedicationService) AddMedication(ctx context.Context, med *model.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockMedicationService) GetMedication(ctx context.Context, medicationID string) (*model.Medication, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Medication), args.Error(1)
}

func (m *MockMedicationService) ListActive(ctx context.Context) ([]model.Medication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Medication), args.Error(1)
}

func (m *MockMedicationService) AddSchedule(ctx context.Context, sched *model.Schedule) error {
	args := m.Called(ctx, sched)
	return args.Error(0)
}

func (m *MockMedicationService) UpdateSchedule(ctx context.Context, sched *model.Schedule) error {
	args := m.Called(ctx, sched)
	return args.Error(0)
}

func (m *MockMedicationService) ArchiveMedication(ctx context.Context, medicationID string) error {
	args := m.Called(ctx, medicationID)
	return args.Error(0)
}

func (m *MockMedicationService) LogStatus(ctx context.Context, date, status string, notes *string, timezone string) (*model.DailyStatus, error) {
	args := m.Called(ctx, date, status, notes, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DailyStatus), args.Error(1)
}

type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) GetEffectiveSettings(ctx context.Context, medicationID string) (model.NotificationSettings, error) {
	args := m.Called(ctx, medicationID)
	return args.Get(0).(model.NotificationSettings), args.Error(1)
}

func (m *MockSettingsService) SaveOverride(ctx context.Context, medicationID string, o *model.NotificationSettingsOverride) error {
	args := m.Called(ctx, medicationID, o)
	return args.Error(0)
}

type MockNotificationAdmin struct {
	mock.Mock
}

func (m *MockNotificationAdmin) GetAllScheduled(ctx context.Context) ([]notify.Scheduled, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notify.Scheduled), args.Error(1)
}

func (m *MockNotificationAdmin) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	args := m.Called(ctx, enabled)
	return args.Error(0)
}

func (m *MockNotificationAdmin) RescheduleAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockNotificationAdmin) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockOrphanReconciler struct {
	mock.Mock
}

func (m *MockOrphanReconciler) FindOrphans(ctx context.Context) (*service.OrphanReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OrphanReport), args.Error(1)
}

func (m *MockOrphanReconciler) RepairOrphans(ctx context.Context) (*service.OrphanReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OrphanReport), args.Error(1)
}

type MockResponseHandler struct {
	mock.Mock
}

func (m *MockResponseHandler) HandleResponse(ctx context.Context, resp service.Response) {
	m.Called(ctx, resp)
}

type MockErrorLogReader struct {
	mock.Mock
}

func (m *MockErrorLogReader) Recent(ctx context.Context, limit int) ([]errorlog.Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]errorlog.Entry), args.Error(1)
}

type MockDoseLog struct {
	mock.Mock
}

func (m *MockDoseLog) Create(ctx context.Context, dose *model.Dose) (*model.Dose, error) {
	args := m.Called(ctx, dose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dose), args.Error(1)
}

func (m *MockDoseLog) ListForMedication(ctx context.Context, medicationID string) ([]model.Dose, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dose), args.Error(1)
}

type MockEpisodeStore struct {
	mock.Mock
}

func (m *MockEpisodeStore) CreateEpisode(ctx context.Context, ep *model.Episode) error {
	args := m.Called(ctx, ep)
	return args.Error(0)
}

func (m *MockEpisodeStore) EndEpisode(ctx context.Context, episodeID string, endTime int64) error {
	args := m.Called(ctx, episodeID, endTime)
	return args.Error(0)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func boolPtr(b bool) *bool { return &b }
