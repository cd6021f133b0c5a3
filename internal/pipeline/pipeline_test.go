package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/dispatcher"
	"github.com/2448334/seimas-scraper/internal/id/uuid"
	pubmemory "github.com/2448334/seimas-scraper/internal/publisher/memory"
	"github.com/2448334/seimas-scraper/internal/stage"
	"github.com/2448334/seimas-scraper/internal/storage/memory"
)

const base = "https://apps.lrs.lt/sip/"

var fixtures = map[string]string{
	base + "p2b.ad_seimo_kadencijos": `<?xml version="1.0" encoding="UTF-8"?>
<SeimoInformacija>
	<SeimoKadencija kadencijos_id="9" pavadinimas="X" data_nuo="2020-01-01" data_iki="2024-01-01"/>
</SeimoInformacija>`,
	base + "p2b.ad_seimo_nariai?kadencijos_id=9": `<SeimoInformacija>
	<SeimoKadencija kadencijos_id="9">
		<SeimoNarys asmens_id="7" vardas="Jonas" pavardė="Jonaitis" lytis="V">
			<Pareigos padalinio_id="55" padalinio_pavadinimas="Komitetas" pareigos="Narys" data_nuo="2020-11-13"/>
		</SeimoNarys>
	</SeimoKadencija>
</SeimoInformacija>`,
	base + "p2b.ad_seimo_sesijos?kadencijos_id=9": `<SeimoInformacija>
	<SeimoKadencija kadencijos_id="9">
		<SeimoSesija sesijos_id="5" numeris="1" pavadinimas="Eilinė sesija" data_nuo="2020-11-13"/>
	</SeimoKadencija>
</SeimoInformacija>`,
	base + "p2b.ad_seimo_posedziai?sesijos_id=5": `<SeimoInformacija>
	<SeimoSesija sesijos_id="5">
		<SeimoPosėdis posėdžio_id="-501" numeris="1" tipas="Rytinis" pradžia="2020-11-13 10:00" pabaiga="2020-11-13 14:00">
			<Protokolas protokolo_nuoroda="https://e-seimas.lrs.lt/portal/legalAct/lt/TAK/p1"/>
			<Stenograma stenogramos_nuoroda="https://e-seimas.lrs.lt/portal/legalAct/lt/TAK/s1"/>
		</SeimoPosėdis>
	</SeimoSesija>
</SeimoInformacija>`,
	base + "p2b.ad_seimo_posedzio_eiga_full?posedzio_id=-501": `<posedziu-eiga>
	<posedis pos_id="-501">
		<pradzia>2020-11-13 10:00:00</pradzia>
		<darbotvarkes-klausimas svarst_kl_stad_id="100">
			<pavadinimas>Seimo pirmininko rinkimai</pavadinimas>
			<kalbetojas klb_id="201" asm_id="7"><asmuo>Jonas Jonaitis</asmuo></kalbetojas>
			<kalbetojas klb_id="202" pran_id="8"><asmuo>Ona Onaitė</asmuo></kalbetojas>
			<balsavimas bals_id="401"><antraste>Pritarta</antraste></balsavimas>
		</darbotvarkes-klausimas>
		<registracija reg_id="501"><antraste>Užsiregistravo 120</antraste></registracija>
		<pabaiga>2020-11-13 14:00:00</pabaiga>
	</posedis>
</posedziu-eiga>`,
	base + "p2b.ad_sp_balsavimo_rezultatai?balsavimo_id=401": `<SeimoInformacija>
	<SeimoNariųBalsavimas balsavimo_id="401">
		<IndividualusBalsavimoRezultatas asmens_id="7" kaip_balsavo="Už"/>
	</SeimoNariųBalsavimas>
</SeimoInformacija>`,
	base + "p2b.ad_sp_registracijos_rezultatai?registracijos_id=501": `<SeimoInformacija>
	<SeimoNariųRegistracija registracijos_id="501">
		<IndividualusRegistracijosRezultatas asmens_id="7" ar_registravosi="Taip"/>
	</SeimoNariųRegistracija>
</SeimoInformacija>`,
}

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newFakeFetcher(skip ...string) *fakeFetcher {
	f := &fakeFetcher{bodies: map[string]string{}, calls: map[string]int{}}
	for k, v := range fixtures {
		f.bodies[k] = v
	}
	for _, k := range skip {
		delete(f.bodies, base+k)
	}
	return f
}

func (f *fakeFetcher) FetchText(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return "", fmt.Errorf("%w: fetch %s: 404 Not Found", crawler.ErrTransport, url)
	}
	return body, nil
}

func (f *fakeFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[base+path]
}

func (f *fakeFetcher) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[base+path] = body
}

type fakeDocuments struct {
	mu   sync.Mutex
	refs []crawler.DocumentRef
}

func (d *fakeDocuments) FetchDocument(_ context.Context, ref crawler.DocumentRef) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs = append(d.refs, ref)
	return true, nil
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	store     *memory.RecordStore
	fetcher   *fakeFetcher
	documents *fakeDocuments
	publisher *pubmemory.Publisher
	pipeline  *Pipeline
}

func newHarness(t *testing.T, cfg Config, fetcher *fakeFetcher) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewRecordStore(),
		fetcher:   fetcher,
		documents: &fakeDocuments{},
		publisher: pubmemory.New(),
	}
	p, err := New(cfg, Deps{
		Feeds:     stage.New(base, fetcher, h.store, nil, nil),
		Store:     h.store,
		Documents: h.documents,
		Runner:    dispatcher.New(4, nil),
		Publisher: h.publisher,
		IDs:       uuid.New(),
		Clock:     &stepClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func stageNames(reports []crawler.StageReport) []string {
	names := make([]string, 0, len(reports))
	for _, r := range reports {
		names = append(names, r.Stage)
	}
	return names
}

func TestAllCrawlsEveryStage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{SkipPopulatedSessions: true}, newFakeFetcher())

	require.NoError(t, h.pipeline.All(context.Background()))

	snap := h.store.Snapshot()
	require.Len(t, snap.Parliaments, 1)
	assert.Equal(t, "X", *snap.Parliaments[9].Name)
	require.Len(t, snap.Politicians, 1)
	require.Len(t, snap.Sessions, 1)
	require.Len(t, snap.Meetings, 1)
	require.Contains(t, snap.MeetingData, int32(-501))
	assert.Equal(t, []int32{100}, snap.MeetingData[-501].Agenda)
	assert.Equal(t, []int32{501}, snap.MeetingData[-501].Registrations)

	item := snap.AgendaItems[100]
	assert.Equal(t, []int32{201, 202}, item.Speeches)
	assert.Equal(t, []int32{401}, item.Voting)
	assert.Equal(t, int32(7), *snap.Speeches[201].PersonID)
	assert.Equal(t, int32(8), *snap.Speeches[202].PersonID)
	require.Len(t, snap.VoteData, 1)
	assert.Equal(t, crawler.VoteFor, *snap.VoteData[0].Vote)
	require.Len(t, snap.RegistrationData, 1)

	assert.Equal(t, []crawler.DocumentRef{
		{Kind: crawler.DocumentProtocol, Link: "https://e-seimas.lrs.lt/portal/legalAct/lt/TAK/p1", SessionID: 5, MeetingNum: 1},
		{Kind: crawler.DocumentStenogram, Link: "https://e-seimas.lrs.lt/portal/legalAct/lt/TAK/s1", SessionID: 5, MeetingNum: 1},
	}, h.documents.refs)

	reports := h.publisher.Reports()
	assert.Equal(t, []string{
		StageParliaments, StagePoliticians, StageSessions, StageMeetings,
		StageMeetingData, StageVotingData, StageRegistrationData,
		stageProtocols, stageStenograms,
	}, stageNames(reports))
	for _, r := range reports {
		assert.Equal(t, reports[0].RunID, r.RunID)
		assert.Zero(t, r.Failed, r.Stage)
	}
}

func TestAllIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{SkipPopulatedSessions: true}, newFakeFetcher())
	ctx := context.Background()

	require.NoError(t, h.pipeline.All(ctx))
	first := h.store.Snapshot()
	require.NoError(t, h.pipeline.All(ctx))
	assert.Equal(t, first, h.store.Snapshot())

	assert.Equal(t, 1, h.fetcher.count("p2b.ad_seimo_posedziai?sesijos_id=5"), "populated session is skipped")
	assert.Equal(t, 2, h.fetcher.count("p2b.ad_seimo_posedzio_eiga_full?posedzio_id=-501"))
}

func TestMeetingsRefetchedWhenSkipDisabled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, newFakeFetcher())
	ctx := context.Background()

	require.NoError(t, h.pipeline.All(ctx))
	require.NoError(t, h.pipeline.Stage(ctx, StageMeetings, Full))
	assert.Equal(t, 2, h.fetcher.count("p2b.ad_seimo_posedziai?sesijos_id=5"))
}

func TestFailedTasksDoNotStopTheCrawl(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, newFakeFetcher("p2b.ad_sp_balsavimo_rezultatai?balsavimo_id=401"))

	require.NoError(t, h.pipeline.All(context.Background()))

	snap := h.store.Snapshot()
	assert.Contains(t, snap.Votes, int32(401), "vote rows are written from meeting data")
	assert.Empty(t, snap.VoteData)
	require.Len(t, snap.RegistrationData, 1)

	for _, r := range h.publisher.Reports() {
		if r.Stage == StageVotingData {
			assert.Equal(t, 1, r.Tasks)
			assert.Equal(t, 1, r.Failed)
		}
	}
}

func TestParliamentFetchesOnlyMissingDetail(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{SkipPopulatedSessions: true}, newFakeFetcher())
	ctx := context.Background()

	require.NoError(t, h.pipeline.Stage(ctx, StageParliaments, Full))
	require.NoError(t, h.pipeline.Parliament(ctx, 9))
	require.NoError(t, h.pipeline.Parliament(ctx, 9))

	snap := h.store.Snapshot()
	require.Contains(t, snap.MeetingData, int32(-501))
	require.Len(t, snap.VoteData, 1)
	require.Len(t, snap.RegistrationData, 1)
	assert.Equal(t, 1, h.fetcher.count("p2b.ad_seimo_posedzio_eiga_full?posedzio_id=-501"))
	assert.Equal(t, 1, h.fetcher.count("p2b.ad_sp_balsavimo_rezultatai?balsavimo_id=401"))
	assert.Equal(t, 2, h.fetcher.count("p2b.ad_seimo_sesijos?kadencijos_id=9"))
	assert.Len(t, h.documents.refs, 4)
}

func TestParliamentPicksUpMeetingsAddedSinceLastRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{SkipPopulatedSessions: true}, newFakeFetcher())
	ctx := context.Background()

	require.NoError(t, h.pipeline.Stage(ctx, StageParliaments, Full))
	require.NoError(t, h.pipeline.Parliament(ctx, 9))

	h.fetcher.set("p2b.ad_seimo_posedziai?sesijos_id=5", `<SeimoInformacija>
	<SeimoSesija sesijos_id="5">
		<SeimoPosėdis posėdžio_id="-501" numeris="1" tipas="Rytinis"/>
		<SeimoPosėdis posėdžio_id="-502" numeris="2" tipas="Vakarinis"/>
	</SeimoSesija>
</SeimoInformacija>`)
	h.fetcher.set("p2b.ad_seimo_posedzio_eiga_full?posedzio_id=-502", `<posedziu-eiga>
	<posedis pos_id="-502"/>
</posedziu-eiga>`)
	require.NoError(t, h.pipeline.Parliament(ctx, 9))

	assert.Equal(t, 2, h.fetcher.count("p2b.ad_seimo_posedziai?sesijos_id=5"))
	snap := h.store.Snapshot()
	require.Contains(t, snap.Meetings, int32(-502))
	require.Contains(t, snap.MeetingData, int32(-502))
	assert.Equal(t, 1, h.fetcher.count("p2b.ad_seimo_posedzio_eiga_full?posedzio_id=-501"))
}

func TestTopLevelFetchFailureEndsRun(t *testing.T) {
	t.Parallel()

	t.Run("all without terms feed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, Config{}, newFakeFetcher("p2b.ad_seimo_kadencijos"))

		err := h.pipeline.All(context.Background())
		require.ErrorIs(t, err, crawler.ErrTransport)
		assert.Empty(t, h.store.Snapshot().Parliaments)

		reports := h.publisher.Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, StageParliaments, reports[0].Stage)
		assert.Equal(t, 1, reports[0].Failed)
		assert.Zero(t, h.fetcher.count("p2b.ad_seimo_nariai?kadencijos_id=9"))
	})

	t.Run("parliament without sessions feed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, Config{}, newFakeFetcher("p2b.ad_seimo_sesijos?kadencijos_id=9"))

		err := h.pipeline.Parliament(context.Background(), 9)
		require.ErrorIs(t, err, crawler.ErrTransport)
		assert.Equal(t, []string{StageSessions}, stageNames(h.publisher.Reports()))
		assert.Empty(t, h.documents.refs)
	})

	t.Run("documents without meetings feed", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, Config{}, newFakeFetcher("p2b.ad_seimo_posedziai?sesijos_id=5"))
		ctx := context.Background()

		require.NoError(t, h.pipeline.Stage(ctx, StageParliaments, Full))
		require.NoError(t, h.pipeline.Stage(ctx, StageSessions, Full))
		err := h.pipeline.Documents(ctx, 9)
		require.ErrorIs(t, err, crawler.ErrTransport)
		assert.Empty(t, h.documents.refs)
	})
}

func TestDocumentsFetchMeetingsInline(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{DocumentChunkSize: 1}, newFakeFetcher())
	ctx := context.Background()

	require.NoError(t, h.pipeline.Stage(ctx, StageParliaments, Full))
	require.NoError(t, h.pipeline.Stage(ctx, StageSessions, Full))
	require.NoError(t, h.pipeline.Documents(ctx, 9))
	assert.Equal(t, 1, h.fetcher.count("p2b.ad_seimo_posedziai?sesijos_id=5"))
	require.Len(t, h.documents.refs, 2)
	assert.Equal(t, crawler.DocumentProtocol, h.documents.refs[0].Kind)
	assert.Equal(t, crawler.DocumentStenogram, h.documents.refs[1].Kind)
}

type failingReader struct {
	*memory.RecordStore
}

func (failingReader) ParliamentIDs(context.Context) ([]int32, error) {
	return nil, fmt.Errorf("%w: select parliament: connection refused", crawler.ErrStore)
}

func TestStoreReadErrorAbortsRun(t *testing.T) {
	t.Parallel()
	store := memory.NewRecordStore()
	p, err := New(Config{}, Deps{
		Feeds:  stage.New(base, newFakeFetcher(), store, nil, nil),
		Store:  failingReader{store},
		Runner: dispatcher.New(2, nil),
	})
	require.NoError(t, err)

	err = p.All(context.Background())
	require.ErrorIs(t, err, crawler.ErrStore)
	assert.Len(t, store.Snapshot().Parliaments, 1, "the parliaments stage ran before the failing read")
}

func TestCanceledContextStopsRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, newFakeFetcher())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.pipeline.All(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, h.publisher.Reports())
}

func TestUnknownStageAndMode(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, newFakeFetcher())

	require.Error(t, h.pipeline.Stage(context.Background(), "speeches", Full))

	mode, err := ParseMode("missing")
	require.NoError(t, err)
	assert.Equal(t, Missing, mode)
	_, err = ParseMode("partial")
	require.Error(t, err)
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestStageReportsUseClock(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, newFakeFetcher())

	require.NoError(t, h.pipeline.Stage(context.Background(), StageParliaments, Full))
	reports := h.publisher.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Tasks)
	assert.True(t, reports[0].FinishedAt.After(reports[0].StartedAt))
	assert.Equal(t, 2024, reports[0].StartedAt.Year())
}
