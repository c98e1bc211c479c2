package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"campus_notify/internal/activity"
	"campus_notify/internal/clock"
	"campus_notify/internal/delivery"
	"campus_notify/internal/docstore"
	"campus_notify/internal/draft"
	"campus_notify/internal/identity"
	"campus_notify/internal/lifecycle"
	"campus_notify/internal/loop"
	"campus_notify/internal/model"
	"campus_notify/internal/prefs"
	"campus_notify/internal/storage"
)

var t0 = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

type recordingRenderer struct {
	shown []model.Message
}

func (r *recordingRenderer) Show(msg model.Message) { r.shown = append(r.shown, msg) }
func (r *recordingRenderer) Hide(model.Message)     {}

func (r *recordingRenderer) titles() []string {
	var out []string
	for _, m := range r.shown {
		out = append(out, m.Title)
	}
	r.shown = nil
	return out
}

type testEngine struct {
	*Engine
	store    *docstore.Memory
	clock    *clock.Fake
	renderer *recordingRenderer
	drafts   *draft.Repo
	holder   *identity.Holder
	life     *lifecycle.Signal
}

func newTestEngine(t *testing.T, u identity.User) *testEngine {
	t.Helper()
	kv, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := clock.NewFake(t0)
	r := &recordingRenderer{}
	store := docstore.NewMemory()
	drafts := draft.NewRepo(kv, c)
	e := New(Deps{
		Store:    store,
		Dispatch: loop.Inline{},
		Channel:  delivery.New(r, c, loop.Inline{}, 0, log),
		Drafts:   drafts,
		Clock:    c,
		Log:      log,
		PageSize: 10,
	})

	te := &testEngine{
		Engine:   e,
		store:    store,
		clock:    c,
		renderer: r,
		drafts:   drafts,
		holder:   identity.NewHolder(u),
		life:     lifecycle.NewSignal(lifecycle.Foreground),
	}
	e.Start(te.holder, te.life)
	t.Cleanup(e.Stop)
	return te
}

func (te *testEngine) set(t *testing.T, path string, f docstore.Fields) {
	t.Helper()
	if err := te.store.Set(context.Background(), path, f, true); err != nil {
		t.Fatalf("set %s: %v", path, err)
	}
}

func (te *testEngine) status(t *testing.T) Status {
	t.Helper()
	st, ok := te.Status(context.Background())
	if !ok {
		t.Fatal("status timed out")
	}
	return st
}

func favorite(t *testing.T, te *testEngine, uid, id, title string) {
	t.Helper()
	te.set(t, activity.ListingPath(id), docstore.Fields{"title": title, "price": 20, "status": "available"})
	te.set(t, docstore.Join(activity.FavoritesPath(uid), id), docstore.Fields{"listingId": id})
}

func TestEngineIdentitySwitch(t *testing.T) {
	te := newTestEngine(t, identity.User{ID: "u1"})
	favorite(t, te, "u1", "l1", "Lamp")
	favorite(t, te, "u2", "l2", "Chair")

	st := te.status(t)
	if diff := cmp.Diff([]string{"l1"}, st.Favorites); diff != "" {
		t.Fatalf("u1 favorites mismatch (-want +got):\n%s", diff)
	}
	if !st.Prefs.Messages || st.Prefs.Recommendations {
		t.Errorf("u1 prefs = %+v, want defaults", st.Prefs)
	}

	te.holder.Set(identity.User{ID: "u2"})
	st = te.status(t)
	if st.User.ID != "u2" {
		t.Fatalf("bound user = %q, want u2", st.User.ID)
	}
	if diff := cmp.Diff([]string{"l2"}, st.Favorites); diff != "" {
		t.Errorf("u2 favorites mismatch (-want +got):\n%s", diff)
	}

	// u1's listing is no longer watched.
	te.set(t, activity.ListingPath("l1"), docstore.Fields{"price": 5})
	te.set(t, activity.ListingPath("l2"), docstore.Fields{"price": 5})
	if diff := cmp.Diff([]string{"Favorite updated"}, te.renderer.titles()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineSignOut(t *testing.T) {
	te := newTestEngine(t, identity.User{ID: "u1"})
	favorite(t, te, "u1", "l1", "Lamp")

	te.holder.Set(identity.User{})
	st := te.status(t)
	if diff := cmp.Diff(model.DisabledState(), st.Prefs); diff != "" {
		t.Errorf("signed-out prefs mismatch (-want +got):\n%s", diff)
	}
	if len(st.Favorites) != 0 {
		t.Errorf("still watching %v after sign-out", st.Favorites)
	}

	te.set(t, activity.ListingPath("l1"), docstore.Fields{"status": "sold"})
	if got := te.renderer.titles(); len(got) != 0 {
		t.Errorf("signed-out engine notified: %v", got)
	}
}

func TestEnginePreferenceToggle(t *testing.T) {
	te := newTestEngine(t, identity.User{ID: "u1"})
	favorite(t, te, "u1", "l1", "Lamp")

	te.set(t, prefs.SettingsPath("u1"), docstore.Fields{"marketplaceActivity": false, "recommendations": true})
	te.set(t, activity.ListingPath("l1"), docstore.Fields{"status": "sold"})
	if got := te.renderer.titles(); len(got) != 0 {
		t.Fatalf("disabled category notified: %v", got)
	}

	te.set(t, activity.ListingPath("l9"), docstore.Fields{"title": "Bike", "price": 60, "sellerId": "s1", "postedAt": t0.Add(time.Minute)})
	if diff := cmp.Diff([]string{"Recommended for you"}, te.renderer.titles()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if st := te.status(t); st.Shown != 1 || st.Active == nil {
		t.Errorf("status = %+v, want one recommendation shown and active", st)
	}
}

func TestEngineDraftReminder(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, identity.User{ID: "u1"})
	if _, err := te.drafts.Save(ctx, "u1", model.DraftRecord{Title: "Lamp"}); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	te.clock.Advance(25 * time.Hour)
	te.life.Emit(lifecycle.Foreground)
	st := te.status(t)
	if st.Active == nil || st.Active.Key != "draft:u1" {
		t.Fatalf("active = %+v, want the draft reminder", st.Active)
	}

	te.Dismiss(ctx)
	if st := te.status(t); st.Active != nil {
		t.Errorf("active = %+v after dismiss", st.Active)
	}
	d, err := te.drafts.Load(ctx, "u1")
	if err != nil || d == nil || d.LastReminderAt == nil {
		t.Fatalf("draft after dismiss = %+v, %v; want a reminder stamp", d, err)
	}

	te.clock.Advance(13 * time.Hour)
	te.ResumeDraft()
	te.CheckDraft(ctx)
	st = te.status(t)
	if st.Screen.Name != model.ScreenCompose || st.Active != nil {
		t.Errorf("status = %+v, want compose screen and no reminder", st)
	}

	te.SetScreen(model.Screen{Name: model.ScreenHome})
	te.CheckDraft(ctx)
	if st := te.status(t); st.Active == nil || st.Active.Key != "draft:u1" {
		t.Errorf("active = %+v, want the reminder back on the home screen", st.Active)
	}
}

func TestEngineDismissOtherMessage(t *testing.T) {
	ctx := context.Background()
	te := newTestEngine(t, identity.User{ID: "u1"})
	favorite(t, te, "u1", "l1", "Lamp")
	te.set(t, activity.ListingPath("l1"), docstore.Fields{"status": "sold"})

	if st := te.status(t); st.Active == nil || st.Active.Title != "Item sold" {
		t.Fatalf("active = %+v, want the sold notice", st.Active)
	}
	te.Dismiss(ctx)
	if st := te.status(t); st.Active != nil {
		t.Errorf("active = %+v after dismiss", st.Active)
	}
}

func TestEngineStop(t *testing.T) {
	te := newTestEngine(t, identity.User{ID: "u1"})
	favorite(t, te, "u1", "l1", "Lamp")

	te.Stop()
	te.holder.Set(identity.User{ID: "u2"})
	te.set(t, activity.ListingPath("l1"), docstore.Fields{"price": 1})
	if got := te.renderer.titles(); len(got) != 0 {
		t.Errorf("stopped engine notified: %v", got)
	}
	if st := te.status(t); st.User.ID != "u1" || len(st.Favorites) != 0 {
		t.Errorf("status after stop = %+v", st)
	}
}
