package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ignite/kitsync/internal/alert"
	"github.com/ignite/kitsync/internal/audience"
	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
	"github.com/ignite/kitsync/internal/ledger"
	"github.com/ignite/kitsync/internal/notion"
	"github.com/ignite/kitsync/internal/render"
	"github.com/ignite/kitsync/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Send.ReadyStatus = "Ready to Send"
	cfg.Send.SentStatus = "Scheduled & Sent"
	cfg.Send.PreviewLength = 150
	cfg.Stats.DateOnlyPolicy = "end_of_day"
	cfg.Carousel.PageSize = 10
	cfg.Carousel.Limit = 3
	cfg.Carousel.MaxComment = 1900
	cfg.Properties = config.PropertyNames{
		Name: "Name", Subject: "SL1", PreviewText: "Pre-Text", PublishDate: "Publish Date",
		Segments: "Segments", Status: "E-mail Status", BroadcastID: "Kit Broadcast ID",
		SentDate: "Sent Date", Recipients: "Recipients", Opens: "Total Opens",
		Clicks: "Total Clicks", OpenRate: "Open Rate", ClickRate: "Click Rate",
		ClickToOpen: "Click-to-Open Rate",
	}
	return cfg
}

type sendFixture struct {
	job    *SendJob
	store  *fakeStore
	kit    *fakeKit
	ledger *ledger.Memory
	alerts *fakeNotifier
}

func newSendFixture(t *testing.T, cfg *config.Config, pages ...notion.Page) *sendFixture {
	t.Helper()
	f := &sendFixture{
		store:  newFakeStore(pages...),
		kit:    &fakeKit{},
		ledger: ledger.NewMemory(),
		alerts: &fakeNotifier{},
	}
	dir := &fakeDirectory{
		tags:     map[string]int64{"vip": 7},
		segments: map[string]int64{"newsletter": 11},
	}
	job, err := NewSendJob(cfg, f.store, f.kit, dir, render.NewRenderer(nil), f.ledger, f.alerts)
	require.NoError(t, err)
	job.Now = func() time.Time { return fixedNow }
	f.job = job
	return f
}

func readyPage(id string) notion.Page {
	return page(id, notion.Properties{
		"Name":         titleProp("Weekly Notes"),
		"SL1":          textProp("This week in review"),
		"Publish Date": dateProp("2026-03-01T09:00:00.000-05:00"),
		"Segments":     multiProp("VIP", "Newsletter"),
	})
}

func TestSendJobCreatesBroadcastAndWritesBack(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.OutcomeSucceeded, results[0].Outcome)
	assert.Equal(t, "b1", results[0].BroadcastID)

	require.Len(t, f.store.queries, 1)
	assert.Equal(t, notion.SelectEquals("E-mail Status", "Ready to Send"), f.store.queries[0].Filter)

	require.Len(t, f.kit.requests, 1)
	req := f.kit.requests[0]
	assert.Equal(t, "This week in review", req.Subject)
	assert.Equal(t, "Hello", req.PreviewText)
	assert.Equal(t, "<p>Hello</p>\n<ul>\n<li>A</li>\n<li>B</li>\n</ul>\n<p>End</p>", req.Content)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), req.SendAt)
	assert.Equal(t, domain.FilterConjunction, req.Filter.Kind)
	assert.Equal(t, []int64{7}, req.Filter.TagIDs)
	assert.Equal(t, []int64{11}, req.Filter.SegmentIDs)

	patch := f.store.patches["doc-1"]
	assert.Equal(t, notion.SelectValue("Scheduled & Sent"), patch["E-mail Status"])
	assert.Equal(t, notion.RichTextValue("b1"), patch["Kit Broadcast ID"])
	assert.Equal(t, notion.DateValue(fixedNow), patch["Sent Date"])

	rec, err := f.ledger.LookupSend(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "b1", rec.BroadcastID)
	assert.Equal(t, "run-1", rec.RunID)
	assert.True(t, rec.Reconciled)
}

func TestSendJobSubjectFallsBackToName(t *testing.T) {
	p := readyPage("doc-1")
	delete(p.Properties, "SL1")
	f := newSendFixture(t, testConfig(), p)
	f.store.blocks["doc-1"] = sampleBlocks()

	_, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, f.kit.requests, 1)
	assert.Equal(t, "Weekly Notes", f.kit.requests[0].Subject)
}

func TestSendJobPreviewTextProperty(t *testing.T) {
	p := readyPage("doc-1")
	p.Properties["Pre-Text"] = textProp("Custom preview")
	f := newSendFixture(t, testConfig(), p)
	f.store.blocks["doc-1"] = sampleBlocks()

	_, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Custom preview", f.kit.requests[0].PreviewText)
}

func TestSendJobSkipsNotReady(t *testing.T) {
	noSubject := page("no-subject", notion.Properties{"Publish Date": dateProp("2026-03-01T09:00:00Z")})

	past := readyPage("past")
	past.Properties["Publish Date"] = dateProp("2026-02-01T11:59:59Z")

	dateOnly := readyPage("date-only")
	dateOnly.Properties["Publish Date"] = dateProp("2026-03-01")

	noDate := readyPage("no-date")
	delete(noDate.Properties, "Publish Date")

	garbage := readyPage("garbage")
	garbage.Properties["Publish Date"] = dateProp("next tuesday")

	empty := readyPage("empty")

	unknownAudience := readyPage("unknown-audience")
	unknownAudience.Properties["Segments"] = multiProp("Nobody")

	f := newSendFixture(t, testConfig(), noSubject, past, dateOnly, noDate, garbage, empty, unknownAudience)
	for _, id := range []string{"no-subject", "past", "date-only", "no-date", "garbage", "unknown-audience"} {
		f.store.blocks[id] = sampleBlocks()
	}

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 7)
	for _, r := range results {
		assert.Equal(t, domain.OutcomeSkipped, r.Outcome, r.DocumentID)
		assert.ErrorIs(t, r.Err, ErrNotReady, r.DocumentID)
	}
	assert.Contains(t, results[1].Reason, string(domain.ScheduleSkipPast))
	assert.Contains(t, results[2].Reason, string(domain.ScheduleSkipMissingTime))
	assert.Contains(t, results[4].Reason, string(domain.ScheduleSkipInvalid))
	assert.Contains(t, results[6].Reason, "Nobody")

	assert.Empty(t, f.kit.requests, "nothing may be sent")
	assert.Empty(t, f.store.patches)
}

func TestSendJobTestModeOverridesAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Send.TestMode = true
	cfg.Send.TestEmail = "me@example.com"
	f := newSendFixture(t, cfg, readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()

	_, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, f.kit.requests, 1)
	assert.Equal(t, domain.RecipientFilter{Kind: domain.FilterTestEmail, Email: "me@example.com"}, f.kit.requests[0].Filter)
}

func TestSendJobEveryone(t *testing.T) {
	p := readyPage("doc-1")
	p.Properties["Segments"] = multiProp("everyone", "VIP")
	f := newSendFixture(t, testConfig(), p)
	f.store.blocks["doc-1"] = sampleBlocks()

	_, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, f.kit.requests[0].Filter.IsEveryone())
}

func TestSendJobProviderFailureIsolated(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"), readyPage("doc-2"))
	f.store.blocks["doc-1"] = sampleBlocks()
	f.store.blocksErr["doc-2"] = errBoom
	f.kit.err = errBoom

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.OutcomeFailed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, errBoom)
	assert.Equal(t, domain.OutcomeFailed, results[1].Outcome)
	assert.Empty(t, f.store.patches)

	rec, _ := f.ledger.LookupSend(context.Background(), "doc-1")
	assert.Nil(t, rec)
}

func TestSendJobWriteBackFailureIsPartial(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()
	f.store.updateErr["doc-1"] = errBoom

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.OutcomePartial, results[0].Outcome)
	assert.Equal(t, "b1", results[0].BroadcastID)

	rec, _ := f.ledger.LookupSend(context.Background(), "doc-1")
	require.NotNil(t, rec)
	assert.False(t, rec.Reconciled)

	require.Len(t, f.alerts.alerts, 1)
	assert.Equal(t, alert.SeverityCritical, f.alerts.alerts[0].Severity)
	assert.Equal(t, "b1", f.alerts.alerts[0].Details["broadcast_id"])
	assert.NotContains(t, f.alerts.alerts[0].Details, "ledger_error")

	// The next run must not create a second broadcast for the same document.
	results, err = f.job.Run(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, results[0].Outcome)
	assert.Contains(t, results[0].Reason, "reconciliation")
	assert.Len(t, f.kit.requests, 1)
}

func TestSendJobLedgerFailureAlerts(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()
	f.job.Ledger = brokenLedger{Memory: f.ledger}

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Notion now says sent, which keeps the document out of later runs.
	assert.Equal(t, domain.OutcomeSucceeded, results[0].Outcome)
	assert.Contains(t, f.store.patches, "doc-1")

	require.Len(t, f.alerts.alerts, 1)
	a := f.alerts.alerts[0]
	assert.Equal(t, alert.SeverityWarning, a.Severity)
	assert.Equal(t, "b1", a.Details["broadcast_id"])
	assert.Equal(t, errBoom.Error(), a.Details["error"])
}

func TestSendJobLedgerAndWriteBackFailureIsCritical(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()
	f.store.updateErr["doc-1"] = errBoom
	f.job.Ledger = brokenLedger{Memory: f.ledger}

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.OutcomePartial, results[0].Outcome)

	require.Len(t, f.alerts.alerts, 1)
	a := f.alerts.alerts[0]
	assert.Equal(t, alert.SeverityCritical, a.Severity)
	assert.Equal(t, "b1", a.Details["broadcast_id"])
	assert.Equal(t, errBoom.Error(), a.Details["ledger_error"])
}

func TestSendJobSeesNewTagsOnNextRun(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()
	dir := &cachingDirectory{listing: map[string]int64{}}
	f.job.Resolver.Directory = dir

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, results[0].Outcome)

	// Someone adds the tag in Kit between scheduled runs.
	dir.listing["vip"] = 7

	results, err = f.job.Run(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSucceeded, results[0].Outcome)
	require.Len(t, f.kit.requests, 1)
	assert.Equal(t, []int64{7}, f.kit.requests[0].Filter.TagIDs)
}

func TestSendJobResendsAfterReconciliation(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()
	require.NoError(t, f.ledger.RecordSend(context.Background(), ledger.SendRecord{DocumentID: "doc-1", BroadcastID: "old"}))
	require.NoError(t, f.ledger.MarkReconciled(context.Background(), "doc-1"))

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSucceeded, results[0].Outcome)
}

func TestSendJobDryRun(t *testing.T) {
	cfg := testConfig()
	cfg.Send.DryRun = true
	f := newSendFixture(t, cfg, readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, "dry run", results[0].Reason)
	assert.Empty(t, f.kit.requests)
	assert.Empty(t, f.store.patches)
}

func TestSendJobEndOfDayPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Send.DateOnlyPolicy = string(schedule.PolicyEndOfDay)
	p := readyPage("doc-1")
	p.Properties["Publish Date"] = dateProp("2026-02-01")
	f := newSendFixture(t, cfg, p)
	f.store.blocks["doc-1"] = sampleBlocks()

	_, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, f.kit.requests, 1)
	assert.Equal(t, time.Date(2026, 2, 1, 23, 59, 59, 0, time.UTC), f.kit.requests[0].SendAt)
}

func TestNewSendJobRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Send.DateOnlyPolicy = "whenever"
	_, err := NewSendJob(cfg, newFakeStore(), &fakeKit{}, &fakeDirectory{}, render.NewRenderer(nil), ledger.NewMemory(), nil)
	assert.Error(t, err)
}

func TestSendJobPreview(t *testing.T) {
	f := newSendFixture(t, testConfig(), readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()

	p, err := f.job.Preview(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, p.Ready)
	assert.Equal(t, "This week in review", p.Subject)
	assert.True(t, strings.HasPrefix(p.HTML, "<p>Hello</p>"))
	assert.Equal(t, domain.AudienceNamedSegments, p.Audience.Mode)
	require.NotNil(t, p.Filter)
	assert.Equal(t, []int64{7}, p.Filter.TagIDs)
	assert.Empty(t, f.kit.requests)
}

func TestSendJobPreviewNotReady(t *testing.T) {
	p := readyPage("doc-1")
	p.Properties["Publish Date"] = dateProp("2020-01-01T00:00:00Z")
	f := newSendFixture(t, testConfig(), p)
	f.store.blocks["doc-1"] = sampleBlocks()

	prev, err := f.job.Preview(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, prev.Ready)
	assert.Contains(t, prev.NotReady, "skip_past")
	assert.NotEmpty(t, prev.HTML)
	assert.Equal(t, domain.ScheduleSkipPast, prev.Schedule.Outcome)
}

func TestSendJobPreviewMissingPage(t *testing.T) {
	f := newSendFixture(t, testConfig())
	_, err := f.job.Preview(context.Background(), "nope")
	assert.ErrorIs(t, err, notion.ErrNotFound)
}

func TestResolverErrorsAreSkips(t *testing.T) {
	cfg := testConfig()
	cfg.Send.TestMode = true
	f := newSendFixture(t, cfg, readyPage("doc-1"))
	f.store.blocks["doc-1"] = sampleBlocks()

	results, err := f.job.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, audience.ErrNoTestEmail)
}
