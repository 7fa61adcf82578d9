package approve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmigrate/internal/core"
)

func sampleMapping() *core.TableMapping {
	return &core.TableMapping{
		SourceTable: "customers",
		TargetTable: "customers",
		Columns: []core.ColumnMapping{
			{Source: "id", SourceTypeRaw: "serial", CanonicalType: core.CanonicalInt8, Target: "id", TargetType: "BIGINT", Role: core.RolePrimaryKey},
			{Source: "email", SourceTypeRaw: "varchar", CanonicalType: core.CanonicalText, Target: "email", TargetType: "VARCHAR(255)", Role: core.RoleUnique},
		},
	}
}

func TestValidateAcceptsWellFormedMapping(t *testing.T) {
	assert.NoError(t, Validate(sampleMapping()))
}

func TestValidateRejectsEmptyTargetTable(t *testing.T) {
	tm := sampleMapping()
	tm.TargetTable = ""
	var mapErr *core.MappingError
	require.ErrorAs(t, Validate(tm), &mapErr)
}

func TestValidateRejectsNoColumns(t *testing.T) {
	tm := sampleMapping()
	tm.Columns = nil
	var mapErr *core.MappingError
	require.ErrorAs(t, Validate(tm), &mapErr)
}

func TestValidateRejectsDuplicateTargetColumn(t *testing.T) {
	tm := sampleMapping()
	tm.Columns[1].Target = tm.Columns[0].Target
	var mapErr *core.MappingError
	require.ErrorAs(t, Validate(tm), &mapErr)
}

func TestValidateRejectsIncompleteColumnMapping(t *testing.T) {
	tm := sampleMapping()
	tm.Columns[0].TargetType = ""
	var mapErr *core.MappingError
	require.ErrorAs(t, Validate(tm), &mapErr)
}

func TestSaveDraftThenLoadDraftRoundTrips(t *testing.T) {
	s := New(t.TempDir())
	tm := sampleMapping()

	require.NoError(t, s.SaveDraft(tm))

	got, err := s.LoadDraft("customers")
	require.NoError(t, err)
	assert.Equal(t, tm.TargetTable, got.TargetTable)
	assert.Len(t, got.Columns, 2)
}

func TestApprovePromotesDraftToApprovedAndStampsMetadata(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SaveDraft(sampleMapping()))

	approved, err := Approve(s, "customers", "alice")
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, "alice", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	loaded, err := s.LoadApproved("customers")
	require.NoError(t, err)
	assert.True(t, loaded.Approved)
	assert.Equal(t, "alice", loaded.ApprovedBy)

	_, err = s.LoadDraft("customers")
	assert.Error(t, err, "draft should be gone after promotion")
}

func TestApproveRejectsInvalidDraft(t *testing.T) {
	s := New(t.TempDir())
	tm := sampleMapping()
	tm.TargetTable = ""
	require.NoError(t, s.SaveDraft(tm))

	_, err := Approve(s, "customers", "alice")
	var mapErr *core.MappingError
	require.ErrorAs(t, err, &mapErr)
}

func TestRenderTOMLThenParseTOMLRoundTrips(t *testing.T) {
	tm := sampleMapping()

	doc, err := RenderTOML(tm)
	require.NoError(t, err)
	assert.Contains(t, doc, "source_table")
	assert.Contains(t, doc, "customers")

	parsed, err := ParseTOML([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, tm.SourceTable, parsed.SourceTable)
	require.Len(t, parsed.Columns, 2)
	assert.Equal(t, tm.Columns[0].Target, parsed.Columns[0].Target)
	assert.Equal(t, tm.Columns[0].Role, parsed.Columns[0].Role)
}
