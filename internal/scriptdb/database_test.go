package scriptdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NaslParser/internal/model"
)

func newTestDatabase(t *testing.T) *ScriptDatabase {
	t.Helper()
	db, err := NewScriptDatabase(filepath.Join(t.TempDir(), "db", "scripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id int, version string, cves ...string) *model.ScriptRecord {
	r := model.NewScriptRecord()
	r.ID = id
	r.Name = "Test Script"
	r.Family = "Web Servers"
	r.Category = "ACT_GATHER_INFO"
	r.Version = version
	r.CVEIDs = append(r.CVEIDs, cves...)
	r.BugtraqIDs = []int{100}
	r.XRefs["CERT"] = "123"
	r.Commands = []string{"security_message(port:80);"}
	return r
}

func TestNewScriptDatabaseIsEmpty(t *testing.T) {
	db := newTestDatabase(t)

	hasData, err := db.HasData()
	require.NoError(t, err)
	assert.False(t, hasData)

	count, err := db.GetScriptCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertAndGetScript(t *testing.T) {
	db := newTestDatabase(t)

	record := testRecord(1001, "$Revision: 1.2 $", "CVE-2021-44228")
	ok, err := db.InsertScript("plugins/a.nasl", record, model.CVSSScores{V3Score: 10, Severity: "CRITICAL"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.GetScript("plugins/a.nasl")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.CVEIDs, got.CVEIDs)
	assert.Equal(t, record.XRefs, got.XRefs)
	assert.Equal(t, record.Commands, got.Commands)
	assert.Equal(t, []string{}, got.Vars)

	hasData, err := db.HasData()
	require.NoError(t, err)
	assert.True(t, hasData)
}

func TestGetScriptKeepsRawCVSDate(t *testing.T) {
	db := newTestDatabase(t)

	record := testRecord(1002, "$Revision: 1.3 $")
	record.CVSDate = model.CVSDate{
		Time:   time.Date(2019, 10, 1, 13, 41, 41, 0, time.UTC),
		Raw:    "$Date: 2019/10/01 13:41:41 $",
		Parsed: true,
	}
	_, err := db.InsertScript("plugins/b.nasl", record, model.CVSSScores{})
	require.NoError(t, err)

	got, err := db.GetScript("plugins/b.nasl")
	require.NoError(t, err)
	assert.True(t, got.CVSDate.Parsed)
	assert.True(t, record.CVSDate.Time.Equal(got.CVSDate.Time))
	assert.Equal(t, "$Date: 2019/10/01 13:41:41 $", got.CVSDate.Raw)
	assert.Equal(t, "2019-10-01 13:41:41", got.CVSDate.String())

	record = testRecord(1003, "")
	record.CVSDate = model.CVSDate{Raw: "sometime last week"}
	_, err = db.InsertScript("plugins/c.nasl", record, model.CVSSScores{})
	require.NoError(t, err)

	got, err = db.GetScript("plugins/c.nasl")
	require.NoError(t, err)
	assert.False(t, got.CVSDate.Parsed)
	assert.Equal(t, "sometime last week", got.CVSDate.Raw)
}

func TestGetScriptNotFound(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.GetScript("missing.nasl")
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestInsertScriptSkipsOlderRevision(t *testing.T) {
	db := newTestDatabase(t)

	ok, err := db.InsertScript("a.nasl", testRecord(1, "$Revision: 1.10 $"), model.CVSSScores{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.InsertScript("a.nasl", testRecord(2, "$Revision: 1.5 $"), model.CVSSScores{})
	require.NoError(t, err)
	assert.False(t, ok, "旧版本不应覆盖新版本")

	got, err := db.GetScript("a.nasl")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ID)

	ok, err = db.InsertScript("a.nasl", testRecord(3, "$Revision: 1.11 $"), model.CVSSScores{})
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := db.GetScriptCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertScriptWithoutVersionReplaces(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertScript("a.nasl", testRecord(1, "2.0"), model.CVSSScores{})
	require.NoError(t, err)

	ok, err := db.InsertScript("a.nasl", testRecord(2, ""), model.CVSSScores{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertScriptNilRecord(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertScript("a.nasl", nil, model.CVSSScores{})
	assert.Error(t, err)
}

func TestLookupByCVE(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertScript("low.nasl", testRecord(1, "", "CVE-2021-1"), model.CVSSScores{V2Score: 4.3, Severity: "MEDIUM"})
	require.NoError(t, err)
	_, err = db.InsertScript("high.nasl", testRecord(2, "", "CVE-2021-1", "CVE-2021-2"), model.CVSSScores{V3Score: 9.8, Severity: "CRITICAL"})
	require.NoError(t, err)

	summaries, err := db.LookupByCVE("cve-2021-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "high.nasl", summaries[0].Path)
	assert.InDelta(t, 9.8, summaries[0].CVSSScore, 0.001)
	assert.Equal(t, "low.nasl", summaries[1].Path)

	summaries, err = db.LookupByCVE("CVE-2021-2")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].ScriptID)

	summaries, err = db.LookupByCVE("CVE-1999-0001")
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestLookupByCVEAfterReplace(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertScript("a.nasl", testRecord(1, "1", "CVE-2021-1"), model.CVSSScores{})
	require.NoError(t, err)
	_, err = db.InsertScript("a.nasl", testRecord(1, "2", "CVE-2021-9"), model.CVSSScores{})
	require.NoError(t, err)

	old, err := db.LookupByCVE("CVE-2021-1")
	require.NoError(t, err)
	assert.Empty(t, old, "替换后旧的引用应被删除")

	current, err := db.LookupByCVE("CVE-2021-9")
	require.NoError(t, err)
	assert.Len(t, current, 1)
}

func TestLookupByFamily(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.InsertScript("a.nasl", testRecord(1, ""), model.CVSSScores{})
	require.NoError(t, err)

	summaries, err := db.LookupByFamily("web servers")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Web Servers", summaries[0].Family)
}

func TestIndexHistory(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.RecordIndexRun("plugins/", 10))
	require.NoError(t, db.RecordIndexRun("plugins/web/", 3))

	history, err := db.GetIndexHistory()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "plugins/web/", history[0]["source"])
	assert.Equal(t, 3, history[0]["records_added"])
	assert.Equal(t, 10, history[1]["records_added"])

	for i := 0; i < 12; i++ {
		require.NoError(t, db.RecordIndexRun("loop", i))
	}
	history, err = db.GetIndexHistory()
	require.NoError(t, err)
	assert.Len(t, history, 10)
}
