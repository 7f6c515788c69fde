package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/semforge/semforge/internal/storage"
)

type Config struct {
	// KeepLatest models per workspace survive regardless of age.
	KeepLatest int
	// MaxAge prunes models older than the cutoff once KeepLatest is
	// satisfied. Zero disables the age check and prunes everything
	// beyond KeepLatest.
	MaxAge   time.Duration
	Interval time.Duration
}

// Service prunes staged semantic models. Every generation uploads a
// fresh timestamped document, so the stage grows without bound unless
// old revisions are swept.
type Service struct {
	Store  storage.ObjectStore
	Config Config
	Logger *slog.Logger
	Clock  func() time.Time
}

type RetentionSummary struct {
	WorkspacesScanned int `json:"workspaces_scanned"`
	ObjectsScanned    int `json:"objects_scanned"`
	ObjectsDeleted    int `json:"objects_deleted"`
	Failures          int `json:"failures"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunRetentionOnce(ctx, "")
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "retention cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "retention cycle completed", slog.Any("summary", summary))
			}
		}
	}
}

// RunRetentionOnce sweeps staged models. An empty workspace sweeps
// every workspace found under the store prefix.
func (s *Service) RunRetentionOnce(ctx context.Context, workspace string) (RetentionSummary, error) {
	s.ensureDefaults()
	if s.Store == nil {
		return RetentionSummary{}, fmt.Errorf("object store is required")
	}

	prefix := ""
	if strings.TrimSpace(workspace) != "" {
		built, err := storage.BuildModelPrefix(strings.TrimSpace(workspace))
		if err != nil {
			return RetentionSummary{}, err
		}
		prefix = built
	}

	objects, err := s.Store.List(ctx, prefix)
	if err != nil {
		retentionRunsTotal.WithLabelValues("failed").Inc()
		return RetentionSummary{}, fmt.Errorf("list staged models: %w", err)
	}

	byWorkspace := groupModelsByWorkspace(objects)
	summary := RetentionSummary{WorkspacesScanned: len(byWorkspace)}
	failures := make([]string, 0)
	cutoff := time.Time{}
	if s.Config.MaxAge > 0 {
		cutoff = s.Clock().Add(-s.Config.MaxAge)
	}

	for ws, models := range byWorkspace {
		summary.ObjectsScanned += len(models)
		sort.Slice(models, func(i, j int) bool {
			return models[i].generatedAt.After(models[j].generatedAt)
		})

		for i, model := range models {
			if i < s.Config.KeepLatest {
				continue
			}
			if !cutoff.IsZero() && model.generatedAt.After(cutoff) {
				continue
			}
			if err := s.Store.Delete(ctx, model.key); err != nil {
				summary.Failures++
				failures = append(failures, fmt.Sprintf("workspace %s delete %s: %v", ws, model.key, err))
				continue
			}
			summary.ObjectsDeleted++
		}
	}

	if summary.ObjectsDeleted > 0 {
		retentionModelsDeletedTotal.Add(float64(summary.ObjectsDeleted))
	}
	if len(failures) > 0 {
		retentionRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("retention encountered %d failure(s): %s", len(failures), strings.Join(failures, "; "))
	}
	retentionRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

type stagedModel struct {
	key         string
	generatedAt time.Time
}

// groupModelsByWorkspace keeps only keys shaped like
// <workspace>/models/<base>_<timestamp>.yaml and buckets them per
// workspace. Foreign objects under the prefix are left alone.
func groupModelsByWorkspace(objects []storage.ObjectInfo) map[string][]stagedModel {
	grouped := make(map[string][]stagedModel)
	for _, object := range objects {
		parts := strings.Split(object.Key, "/")
		if len(parts) != 3 || parts[1] != "models" || !strings.HasSuffix(parts[2], ".yaml") {
			continue
		}
		generatedAt, ok := parseModelTimestamp(parts[2])
		if !ok {
			generatedAt = object.LastModified
		}
		grouped[parts[0]] = append(grouped[parts[0]], stagedModel{
			key:         object.Key,
			generatedAt: generatedAt,
		})
	}
	return grouped
}

func parseModelTimestamp(filename string) (time.Time, bool) {
	name := strings.TrimSuffix(path.Base(filename), ".yaml")
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return time.Time{}, false
	}
	// Timestamp spans the last two underscore-separated segments:
	// <base>_<YYYYMMDD>_<HHMMSS>.
	prev := strings.LastIndex(name[:idx], "_")
	if prev < 0 {
		return time.Time{}, false
	}
	ts, err := time.Parse(storage.ModelTimestampLayout, name[prev+1:])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.KeepLatest < 1 {
		s.Config.KeepLatest = 1
	}
	if s.Config.Interval <= 0 {
		s.Config.Interval = time.Hour
	}
}
