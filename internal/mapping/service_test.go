package mapping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"bodyfeel/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestCreateMappingCreatesSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	m, err := svc.CreateMapping(ctx, "s1", domain.SensationMap{"head": "hot"}, domain.ViewFront)
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}
	if m.ID == "" || m.SessionID != "s1" || m.CreatedAt.IsZero() {
		t.Fatalf("unexpected mapping: %+v", m)
	}

	second, err := svc.CreateMapping(ctx, "s1", domain.SensationMap{"chest": "cold"}, domain.ViewBack)
	if err != nil {
		t.Fatalf("create second mapping: %v", err)
	}
	got, err := svc.SessionMappings(ctx, "s1")
	if err != nil {
		t.Fatalf("session mappings: %v", err)
	}
	if len(got) != 2 || got[0].ID != m.ID || got[1].ID != second.ID {
		t.Fatalf("session mappings out of order: %+v", got)
	}

	sessions, err := svc.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || len(sessions[0].MappingIDs) != 2 {
		t.Fatalf("sessions=%+v", sessions)
	}
}

func TestCreateMappingGeneratesSessionID(t *testing.T) {
	m, err := newTestService(t).CreateMapping(context.Background(), "  ", domain.SensationMap{"head": "warm"}, domain.ViewFront)
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}
	if m.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestCreateMappingValidation(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name     string
		markings domain.SensationMap
		view     domain.View
	}{
		{name: "empty markings", markings: domain.SensationMap{}, view: domain.ViewFront},
		{name: "bad view", markings: domain.SensationMap{"head": "hot"}, view: "side"},
		{name: "bad sensation", markings: domain.SensationMap{"head": "tingly"}, view: domain.ViewFront},
		{name: "blank region", markings: domain.SensationMap{" ": "hot"}, view: domain.ViewBack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMapping(context.Background(), "s", tt.markings, tt.view)
			if !errors.Is(err, ErrInvalidMapping) {
				t.Fatalf("err=%v, want ErrInvalidMapping", err)
			}
		})
	}
}

func TestCreateMappingStoresCanonicalSensations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	in := domain.SensationMap{"head": "HOT", "chest": " Warm ", "left-leg": ""}
	m, err := svc.CreateMapping(ctx, "s1", in, domain.ViewFront)
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}
	want := domain.SensationMap{"head": domain.SensationHot, "chest": domain.SensationWarm, "left-leg": ""}
	got, err := svc.Mapping(ctx, m.ID)
	if err != nil {
		t.Fatalf("get mapping: %v", err)
	}
	if len(got.BodyMarkings) != len(want) {
		t.Fatalf("markings=%v, want %v", got.BodyMarkings, want)
	}
	for region, s := range want {
		if got.BodyMarkings[region] != s {
			t.Fatalf("markings=%v, want %v", got.BodyMarkings, want)
		}
	}
	if in["head"] != "HOT" {
		t.Fatalf("caller markings were modified: %v", in)
	}

	updated, err := svc.UpdateMapping(ctx, m.ID, domain.SensationMap{"stomach": "Cold"}, "")
	if err != nil {
		t.Fatalf("update mapping: %v", err)
	}
	if updated.BodyMarkings["stomach"] != domain.SensationCold {
		t.Fatalf("updated markings=%v", updated.BodyMarkings)
	}
}

func TestUpdateMappingKeepsUnsetFields(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m, err := svc.CreateMapping(ctx, "s1", domain.SensationMap{"head": "hot"}, domain.ViewFront)
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}

	updated, err := svc.UpdateMapping(ctx, m.ID, nil, domain.ViewBack)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.View != domain.ViewBack || updated.BodyMarkings["head"] != domain.SensationHot {
		t.Fatalf("updated=%+v", updated)
	}

	if _, err := svc.UpdateMapping(ctx, "missing", nil, ""); !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("err=%v, want ErrMappingNotFound", err)
	}
}

func TestRecordAndResult(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	analysis := domain.Analysis{Source: domain.SourceLocal, Results: []domain.Hypothesis{{Emotion: "Anger", Confidence: 1, Source: domain.SourceLocal}}}

	m, err := svc.Record(ctx, "", domain.SensationMap{"head": "hot"}, domain.ViewFront, analysis)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	rec, err := svc.Result(ctx, m.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if rec.Result.Primary().Emotion != "Anger" || rec.MappingID != m.ID {
		t.Fatalf("rec=%+v", rec)
	}

	if _, err := svc.SaveResult(ctx, "missing", analysis); !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("err=%v, want ErrMappingNotFound", err)
	}
	if _, err := svc.Result(ctx, "missing"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("err=%v, want ErrResultNotFound", err)
	}
}

func TestDeleteMappingRemovesResult(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m, err := svc.Record(ctx, "s1", domain.SensationMap{"chest": "warm"}, domain.ViewFront, domain.Analysis{Source: domain.SourceLocal})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.DeleteMapping(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Mapping(ctx, m.ID); !errors.Is(err, ErrMappingNotFound) {
		t.Fatalf("err=%v, want ErrMappingNotFound", err)
	}
	stats, _ := svc.Stats(ctx)
	if stats.TotalMappings != 0 || stats.TotalEmotionResults != 0 || stats.TotalSessions != 1 {
		t.Fatalf("stats=%+v", stats)
	}
	got, _ := svc.SessionMappings(ctx, "s1")
	if len(got) != 0 {
		t.Fatalf("session still lists deleted mapping: %+v", got)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	for _, sid := range []string{"s1", "s1", "s2"} {
		if _, err := svc.Record(ctx, sid, domain.SensationMap{"head": "cool"}, domain.ViewFront, domain.Analysis{Source: domain.SourceLocal}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := svc.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.StorageStats{TotalSessions: 1, TotalMappings: 1, TotalEmotionResults: 1, Storage: StorageMemory}
	if stats != want {
		t.Fatalf("stats=%+v, want %+v", stats, want)
	}
	if err := svc.DeleteSession(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err=%v, want ErrSessionNotFound", err)
	}
	if _, err := svc.SessionMappings(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err=%v, want ErrSessionNotFound", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	in := domain.SensationMap{"head": "hot"}
	m, err := svc.CreateMapping(ctx, "s1", in, domain.ViewFront)
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}
	in["head"] = domain.SensationCold

	got, _ := svc.Mapping(ctx, m.ID)
	got.BodyMarkings["chest"] = domain.SensationWarm

	again, _ := svc.Mapping(ctx, m.ID)
	if again.BodyMarkings["head"] != domain.SensationHot || len(again.BodyMarkings) != 1 {
		t.Fatalf("stored markings changed: %v", again.BodyMarkings)
	}
}

func TestConcurrentRecord(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	svc := newTestService(t)
	analysis := domain.Analysis{Source: domain.SourceLocal, Results: []domain.Hypothesis{{Emotion: "Joy", Confidence: 0.5, Source: domain.SourceLocal}}}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i%2)
			if _, err := svc.Record(ctx, session, domain.SensationMap{"chest": domain.SensationWarm}, domain.ViewFront, analysis); err != nil {
				errs <- err
			}
			if _, err := svc.Stats(ctx); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent record: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.StorageStats{TotalSessions: 2, TotalMappings: workers, TotalEmotionResults: workers, Storage: StorageMemory}
	if stats != want {
		t.Fatalf("stats=%+v, want %+v", stats, want)
	}
}
