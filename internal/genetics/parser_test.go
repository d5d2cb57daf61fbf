package genetics

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-med-guard-server/internal/domain"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	parser, err := NewParser(logger)
	require.NoError(t, err)
	return parser
}

const sampleExport = `# This data file generated by a consumer genomics service
# rsid	chromosome	position	genotype
rs3892097	22	42524947	TT
rs4244285	10	94781859	AG
rs1799853	10	94942290	CT

rs762551	15	74749576	AA
rs0000001	1	1000000	GG
`

func TestParse_SampleExport(t *testing.T) {
	parser := newTestParser(t)

	profile, err := parser.Parse([]byte(sampleExport), "genome.txt")
	require.NoError(t, err)

	assert.Equal(t, "TT", profile.Genotype(domain.GeneCYP2D6))
	assert.Equal(t, "AG", profile.Genotype(domain.GeneCYP2C19))
	assert.Equal(t, "CT", profile.Genotype(domain.GeneCYP2C9))
	assert.Equal(t, "AA", profile.Genotype(domain.GeneCYP1A2))

	// Unmapped rsids are retained under their own key.
	assert.Equal(t, "GG", profile.Genotype("rs0000001"))
	assert.Equal(t, "genome.txt", profile.SourceFile)
	assert.False(t, profile.ImportedAt.IsZero())
}

func TestParse_SkipsCommentsAndBlankLines(t *testing.T) {
	parser := newTestParser(t)

	input := "# header\n\n\nrs3892097\t22\t42524947\tCT\n# trailing comment\n"
	profile, err := parser.Parse([]byte(input), "genome.txt")
	require.NoError(t, err)

	assert.Len(t, profile.Genotypes, 1)
	assert.Equal(t, "CT", profile.Genotype(domain.GeneCYP2D6))
}

func TestParse_SkipsMalformedLines(t *testing.T) {
	parser := newTestParser(t)

	input := "rs3892097\t22\n" + // too few fields
		"rs4244285\t10\t94781859\tGG\n" +
		"\t1\t2\t3\n" // empty rsid
	profile, err := parser.Parse([]byte(input), "genome.txt")
	require.NoError(t, err)

	assert.Len(t, profile.Genotypes, 1)
	assert.Equal(t, "GG", profile.Genotype(domain.GeneCYP2C19))
}

func TestParse_EmptyInputFails(t *testing.T) {
	parser := newTestParser(t)

	for _, input := range []string{"", "# only comments\n# more\n"} {
		_, err := parser.Parse([]byte(input), "empty.txt")
		require.Error(t, err)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestParse_CacheReturnsSameProfile(t *testing.T) {
	parser := newTestParser(t)

	first, err := parser.Parse([]byte(sampleExport), "genome.txt")
	require.NoError(t, err)
	second, err := parser.Parse([]byte(sampleExport), "genome.txt")
	require.NoError(t, err)

	// Identical content hits the cache and yields the same parse.
	assert.Same(t, first, second)

	// Different content misses.
	other, err := parser.Parse([]byte(strings.Replace(sampleExport, "TT", "CC", 1)), "genome.txt")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, "CC", other.Genotype(domain.GeneCYP2D6))
}
