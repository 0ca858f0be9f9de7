package organizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/history"
	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/progress"
	"github.com/mediastow/mediastow/internal/settings"
	"github.com/mediastow/mediastow/internal/store"
	"github.com/mediastow/mediastow/internal/testutil"
)

type organizeHarness struct {
	tdb         *testutil.TestDB
	settings    *settings.Service
	history     *history.Service
	coordinator *jobs.Coordinator
	service     *Service
	moviesRoot  string
	tvRoot      string
}

func newOrganizeHarness(t *testing.T) *organizeHarness {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	logger := zerolog.Nop()
	h := &organizeHarness{
		tdb:         tdb,
		settings:    settings.NewService(tdb.Store, logger),
		history:     history.NewService(tdb.Store, logger),
		coordinator: jobs.NewCoordinator(),
		moviesRoot:  t.TempDir(),
		tvRoot:      t.TempDir(),
	}
	h.service = NewService(
		tdb.Store,
		h.settings,
		h.history,
		h.coordinator,
		progress.NewPublisher(nil, logger),
		logger,
	)
	h.configureRoots(t, h.moviesRoot, h.tvRoot)
	return h
}

func (h *organizeHarness) configureRoots(t *testing.T, moviesRoot, tvRoot string) {
	t.Helper()
	_, err := h.settings.Update(context.Background(), &settings.Settings{
		MoviesRoot: moviesRoot,
		TVRoot:     tvRoot,
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
}

func (h *organizeHarness) insertItem(t *testing.T, item *store.MediaItem) *store.MediaItem {
	t.Helper()
	if item.OriginalFilename == "" {
		item.OriginalFilename = filepath.Base(item.OriginalPath)
	}
	if item.Status == "" {
		item.Status = store.StatusPending
	}
	inserted, err := h.tdb.Store.InsertItem(context.Background(), item)
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return inserted
}

// waitOrganize blocks until the job reaches a terminal state and the
// organize slot is released, so follow-up runs in the same test cannot
// race.
func (h *organizeHarness) waitOrganize(t *testing.T, jobID int64) *store.OrganizeJob {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.tdb.Store.GetOrganizeJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get organize job: %v", err)
		}
		if job != nil && job.Status.IsTerminal() && !h.coordinator.Active(jobs.KindOrganize) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("organize job did not finish")
	return nil
}

func (h *organizeHarness) organizeOnce(t *testing.T, ids []int64) *store.OrganizeJob {
	t.Helper()
	job, err := h.service.StartOrganize(context.Background(), ids)
	if err != nil {
		t.Fatalf("start organize: %v", err)
	}
	return h.waitOrganize(t, job.ID)
}

func (h *organizeHarness) reload(t *testing.T, id int64) *store.MediaItem {
	t.Helper()
	item, err := h.tdb.Store.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item == nil {
		t.Fatalf("item %d not found", id)
	}
	return item
}

func (h *organizeHarness) logEntries(t *testing.T, action string) []*store.OrganizationLogEntry {
	t.Helper()
	resp, err := h.history.List(context.Background(), history.ListOptions{Action: action})
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return resp.Entries
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestStartOrganizeWithoutRoots(t *testing.T) {
	h := newOrganizeHarness(t)
	h.configureRoots(t, "", "")

	_, err := h.service.StartOrganize(context.Background(), []int64{1})
	if !errors.Is(err, settings.ErrNoDestinationRoots) {
		t.Fatalf("err = %v, want ErrNoDestinationRoots", err)
	}
}

func TestStartOrganizeWhileRunning(t *testing.T) {
	h := newOrganizeHarness(t)

	if err := h.coordinator.Acquire(jobs.KindOrganize); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.coordinator.Release(jobs.KindOrganize)

	_, err := h.service.StartOrganize(context.Background(), []int64{1})
	if !errors.Is(err, jobs.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestOrganizeMovesMovie(t *testing.T) {
	h := newOrganizeHarness(t)
	source := filepath.Join(t.TempDir(), "The.Matrix.1999.1080p.mkv")
	payload := []byte("matrix payload")
	testutil.WriteFile(t, source, payload)

	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     int64(len(payload)),
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "The Matrix",
		TMDBID:       testutil.Int64Ptr(603),
		TMDBName:     "The Matrix",
		Year:         testutil.IntPtr(1999),
		PosterPath:   "/matrix.jpg",
	})

	job := h.organizeOnce(t, []int64{item.ID})

	if job.Status != store.JobCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.TotalFiles != 1 || job.ProcessedFiles != 1 || job.SuccessCount != 1 || job.FailedCount != 0 {
		t.Errorf("counters = total %d processed %d success %d failed %d, want 1/1/1/0",
			job.TotalFiles, job.ProcessedFiles, job.SuccessCount, job.FailedCount)
	}

	want := filepath.Join(h.moviesRoot, "The Matrix (1999)", "The Matrix (1999).mkv")
	got, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("destination contents = %q", got)
	}
	if fileExists(source) {
		t.Error("source file still exists after move")
	}

	item = h.reload(t, item.ID)
	if item.Status != store.StatusOrganized {
		t.Errorf("status = %s, want organized", item.Status)
	}
	if item.DestinationPath != want {
		t.Errorf("destinationPath = %q, want %q", item.DestinationPath, want)
	}

	moves := h.logEntries(t, "move")
	if len(moves) != 1 {
		t.Fatalf("move entries = %d, want 1", len(moves))
	}
	if moves[0].SourcePath != source || moves[0].DestinationPath != want {
		t.Errorf("move entry = %q -> %q", moves[0].SourcePath, moves[0].DestinationPath)
	}
	if moves[0].MediaItemID == nil || *moves[0].MediaItemID != item.ID {
		t.Errorf("move entry itemId = %v, want %d", moves[0].MediaItemID, item.ID)
	}

	record, err := h.tdb.Store.GetMovieRecordByTMDBID(context.Background(), 603)
	if err != nil {
		t.Fatalf("get movie record: %v", err)
	}
	if record == nil {
		t.Fatal("movie record not created")
	}
	if record.Title != "The Matrix" || record.Year == nil || *record.Year != 1999 {
		t.Errorf("record = %q year %v", record.Title, record.Year)
	}
}

func TestOrganizeMovesEpisodesAndCountsThem(t *testing.T) {
	h := newOrganizeHarness(t)
	src := t.TempDir()

	pilotPath := filepath.Join(src, "Breaking.Bad.S01E01.mkv")
	testutil.WriteFile(t, pilotPath, []byte("pilot"))
	pilot := h.insertItem(t, &store.MediaItem{
		OriginalPath: pilotPath,
		FileSize:     5,
		Extension:    ".mkv",
		DetectedType: store.TypeTV,
		CleanedName:  "Breaking Bad",
		TMDBID:       testutil.Int64Ptr(1396),
		TMDBName:     "Breaking Bad",
		Season:       testutil.IntPtr(1),
		Episode:      testutil.IntPtr(1),
	})

	spanPath := filepath.Join(src, "Breaking.Bad.S01E02-E03.mkv")
	testutil.WriteFile(t, spanPath, []byte("double"))
	span := h.insertItem(t, &store.MediaItem{
		OriginalPath: spanPath,
		FileSize:     6,
		Extension:    ".mkv",
		DetectedType: store.TypeTV,
		CleanedName:  "Breaking Bad",
		TMDBID:       testutil.Int64Ptr(1396),
		TMDBName:     "Breaking Bad",
		Season:       testutil.IntPtr(1),
		Episode:      testutil.IntPtr(2),
		EpisodeEnd:   testutil.IntPtr(3),
	})

	job := h.organizeOnce(t, []int64{pilot.ID, span.ID})

	if job.SuccessCount != 2 || job.FailedCount != 0 {
		t.Fatalf("counters = success %d failed %d, want 2/0", job.SuccessCount, job.FailedCount)
	}

	wantPilot := filepath.Join(h.tvRoot, "Breaking Bad", "Season 01", "Breaking Bad - S01E01.mkv")
	wantSpan := filepath.Join(h.tvRoot, "Breaking Bad", "Season 01", "Breaking Bad - S01E02-E03.mkv")
	if !fileExists(wantPilot) {
		t.Errorf("missing %s", wantPilot)
	}
	if !fileExists(wantSpan) {
		t.Errorf("missing %s", wantSpan)
	}

	record, err := h.tdb.Store.GetTVSeriesRecordByTMDBID(context.Background(), 1396)
	if err != nil {
		t.Fatalf("get series record: %v", err)
	}
	if record == nil {
		t.Fatal("series record not created")
	}
	if record.Name != "Breaking Bad" {
		t.Errorf("record name = %q", record.Name)
	}
	if record.EpisodeCount != 3 {
		t.Errorf("episodeCount = %d, want 3 (one single plus one two-episode span)", record.EpisodeCount)
	}
}

func TestOrganizeLeavesNonPendingAndSeasonPacks(t *testing.T) {
	h := newOrganizeHarness(t)
	src := t.TempDir()

	donePath := filepath.Join(src, "Done.2020.mkv")
	testutil.WriteFile(t, donePath, []byte("done"))
	done := h.insertItem(t, &store.MediaItem{
		OriginalPath:    donePath,
		FileSize:        4,
		Extension:       ".mkv",
		DetectedType:    store.TypeMovie,
		CleanedName:     "Done",
		Year:            testutil.IntPtr(2020),
		Status:          store.StatusOrganized,
		DestinationPath: "/somewhere/Done (2020)/Done (2020).mkv",
	})

	packPath := filepath.Join(src, "Show.Season.1.Complete.mkv")
	testutil.WriteFile(t, packPath, []byte("pack"))
	pack := h.insertItem(t, &store.MediaItem{
		OriginalPath: packPath,
		FileSize:     4,
		Extension:    ".mkv",
		DetectedType: store.TypeTV,
		CleanedName:  "Show",
		Season:       testutil.IntPtr(1),
		IsSeasonPack: true,
	})

	job := h.organizeOnce(t, []int64{done.ID, pack.ID})

	if job.ProcessedFiles != 2 || job.SuccessCount != 0 || job.FailedCount != 0 {
		t.Errorf("counters = processed %d success %d failed %d, want 2/0/0",
			job.ProcessedFiles, job.SuccessCount, job.FailedCount)
	}
	if !fileExists(donePath) || !fileExists(packPath) {
		t.Error("files were moved")
	}
	if got := h.reload(t, done.ID); got.Status != store.StatusOrganized {
		t.Errorf("done status = %s", got.Status)
	}
	if got := h.reload(t, pack.ID); got.Status != store.StatusPending {
		t.Errorf("pack status = %s", got.Status)
	}
}

func TestOrganizeSameSizeCollisionSkips(t *testing.T) {
	h := newOrganizeHarness(t)
	payload := []byte("same size")
	dest := filepath.Join(h.moviesRoot, "Heat (1995)", "Heat (1995).mkv")
	testutil.WriteFile(t, dest, payload)

	occupant := h.insertItem(t, &store.MediaItem{
		OriginalPath:    filepath.Join(t.TempDir(), "Heat.1995.original.mkv"),
		FileSize:        int64(len(payload)),
		Extension:       ".mkv",
		DetectedType:    store.TypeMovie,
		CleanedName:     "Heat",
		Year:            testutil.IntPtr(1995),
		Status:          store.StatusOrganized,
		DestinationPath: dest,
	})

	source := filepath.Join(t.TempDir(), "Heat.1995.REPACK.mkv")
	testutil.WriteFile(t, source, payload)
	candidate := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     int64(len(payload)),
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "Heat",
		Year:         testutil.IntPtr(1995),
	})

	job := h.organizeOnce(t, []int64{candidate.ID})

	if job.SuccessCount != 1 || job.FailedCount != 0 {
		t.Errorf("counters = success %d failed %d, want 1/0", job.SuccessCount, job.FailedCount)
	}
	if !fileExists(source) {
		t.Error("source was moved despite the collision")
	}

	candidate = h.reload(t, candidate.ID)
	if candidate.Status != store.StatusSkipped {
		t.Errorf("status = %s, want skipped", candidate.Status)
	}
	if candidate.DuplicateOf == nil || *candidate.DuplicateOf != occupant.ID {
		t.Errorf("duplicateOf = %v, want %d", candidate.DuplicateOf, occupant.ID)
	}

	skips := h.logEntries(t, "skip")
	if len(skips) != 1 {
		t.Fatalf("skip entries = %d, want 1", len(skips))
	}
	if skips[0].DestinationPath != dest {
		t.Errorf("skip destination = %q, want %q", skips[0].DestinationPath, dest)
	}
}

func TestOrganizeDifferentSizeCollisionUsesCopyName(t *testing.T) {
	h := newOrganizeHarness(t)
	dest := filepath.Join(h.moviesRoot, "Heat (1995)", "Heat (1995).mkv")
	testutil.WriteFile(t, dest, []byte("short"))

	source := filepath.Join(t.TempDir(), "Heat.1995.Extended.mkv")
	payload := []byte("much longer payload")
	testutil.WriteFile(t, source, payload)
	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     int64(len(payload)),
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "Heat",
		Year:         testutil.IntPtr(1995),
	})

	job := h.organizeOnce(t, []int64{item.ID})

	if job.SuccessCount != 1 {
		t.Fatalf("successCount = %d, want 1", job.SuccessCount)
	}

	want := filepath.Join(h.moviesRoot, "Heat (1995)", "Heat (1995) (copy 2).mkv")
	if !fileExists(want) {
		t.Fatalf("missing %s", want)
	}
	if got, _ := os.ReadFile(dest); string(got) != "short" {
		t.Error("original destination file was overwritten")
	}

	item = h.reload(t, item.ID)
	if item.DestinationPath != want {
		t.Errorf("destinationPath = %q, want %q", item.DestinationPath, want)
	}
}

func TestOrganizeRefusesSourceEqualToDestination(t *testing.T) {
	h := newOrganizeHarness(t)
	path := filepath.Join(h.moviesRoot, "Heat (1995)", "Heat (1995).mkv")
	testutil.WriteFile(t, path, []byte("already there"))

	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: path,
		FileSize:     13,
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "Heat",
		Year:         testutil.IntPtr(1995),
	})

	job := h.organizeOnce(t, []int64{item.ID})

	if job.FailedCount != 1 || job.SuccessCount != 0 {
		t.Errorf("counters = failed %d success %d, want 1/0", job.FailedCount, job.SuccessCount)
	}
	if !fileExists(path) {
		t.Error("file vanished")
	}
	if got := h.reload(t, item.ID); got.Status != store.StatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
}

func TestOrganizeRefusesDestinationInsideSourceDir(t *testing.T) {
	h := newOrganizeHarness(t)
	source := filepath.Join(h.moviesRoot, "Heat.1995.mkv")
	testutil.WriteFile(t, source, []byte("in the root"))

	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     11,
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "Heat",
		Year:         testutil.IntPtr(1995),
	})

	job := h.organizeOnce(t, []int64{item.ID})

	if job.FailedCount != 1 {
		t.Errorf("failedCount = %d, want 1", job.FailedCount)
	}
	if !fileExists(source) {
		t.Error("source was moved")
	}

	errs := h.logEntries(t, "error")
	if len(errs) != 1 {
		t.Fatalf("error entries = %d, want 1", len(errs))
	}
}

func TestOrganizeMissingItem(t *testing.T) {
	h := newOrganizeHarness(t)

	job := h.organizeOnce(t, []int64{99999})

	if job.Status != store.JobCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.FailedCount != 1 {
		t.Errorf("failedCount = %d, want 1", job.FailedCount)
	}

	errs := h.logEntries(t, "error")
	if len(errs) != 1 {
		t.Fatalf("error entries = %d, want 1", len(errs))
	}
	if errs[0].MediaItemID != nil {
		t.Errorf("itemId = %v, want nil", errs[0].MediaItemID)
	}
}

func TestOrganizeMissingTypeRoot(t *testing.T) {
	h := newOrganizeHarness(t)
	h.configureRoots(t, h.moviesRoot, "")

	source := filepath.Join(t.TempDir(), "Show.S01E01.mkv")
	testutil.WriteFile(t, source, []byte("episode"))
	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     7,
		Extension:    ".mkv",
		DetectedType: store.TypeTV,
		CleanedName:  "Show",
		Season:       testutil.IntPtr(1),
		Episode:      testutil.IntPtr(1),
	})

	job := h.organizeOnce(t, []int64{item.ID})

	if job.FailedCount != 1 {
		t.Errorf("failedCount = %d, want 1", job.FailedCount)
	}
	if got := h.reload(t, item.ID); got.Status != store.StatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
	if !fileExists(source) {
		t.Error("source was moved")
	}
}

func TestUndoRestoresOriginalPath(t *testing.T) {
	h := newOrganizeHarness(t)
	source := filepath.Join(t.TempDir(), "The.Matrix.1999.mkv")
	testutil.WriteFile(t, source, []byte("matrix"))

	item := h.insertItem(t, &store.MediaItem{
		OriginalPath: source,
		FileSize:     6,
		Extension:    ".mkv",
		DetectedType: store.TypeMovie,
		CleanedName:  "The Matrix",
		Year:         testutil.IntPtr(1999),
	})
	h.organizeOnce(t, []int64{item.ID})

	organized := h.reload(t, item.ID)
	if organized.Status != store.StatusOrganized {
		t.Fatalf("status = %s, want organized", organized.Status)
	}
	dest := organized.DestinationPath

	undone, err := h.service.Undo(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.Status != store.StatusPending {
		t.Errorf("status = %s, want pending", undone.Status)
	}
	if undone.DestinationPath != "" {
		t.Errorf("destinationPath = %q, want empty", undone.DestinationPath)
	}
	if !fileExists(source) {
		t.Error("file not restored to original path")
	}
	if fileExists(dest) {
		t.Error("file still at destination")
	}

	if _, err := h.service.Undo(context.Background(), item.ID); !errors.Is(err, ErrNotOrganized) {
		t.Errorf("second undo err = %v, want ErrNotOrganized", err)
	}
}

func TestUndoUnknownItem(t *testing.T) {
	h := newOrganizeHarness(t)

	_, err := h.service.Undo(context.Background(), 424242)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}
