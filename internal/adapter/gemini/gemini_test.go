package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"bioguard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
}

func TestParseFinding(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Finding
	}{
		{
			name: "structured",
			text: `{"region":"left_knee","severity":"High","note":"12° valgus on landing"}`,
			want: domain.Finding{Region: domain.RegionLeftKnee, Severity: domain.RiskHigh, Note: "12° valgus on landing"},
		},
		{
			name: "fenced json",
			text: "```json\n{\"region\":\"lower_back\",\"severity\":\"medium\",\"note\":\"Lumbar flexion\"}\n```",
			want: domain.Finding{Region: domain.RegionLowerBack, Severity: domain.RiskMedium, Note: "Lumbar flexion"},
		},
		{
			name: "region none",
			text: `{"region":"none","severity":"Low","note":"Clean sprint mechanics"}`,
			want: domain.Finding{Region: domain.RegionNone, Severity: domain.RiskLow, Note: "Clean sprint mechanics"},
		},
		{
			name: "unknown labels dropped",
			text: `{"region":"elbow","severity":"extreme","note":"Arm swing asymmetry"}`,
			want: domain.Finding{Note: "Arm swing asymmetry"},
		},
		{
			name: "note whitespace preserved",
			text: `{"region":"none","severity":"Low","note":"    code block from model\n"}`,
			want: domain.Finding{Region: domain.RegionNone, Severity: domain.RiskLow, Note: "    code block from model\n"},
		},
		{
			name: "indented free text kept whole",
			text: "    code block from model\n",
			want: domain.Finding{Note: "    code block from model\n"},
		},
		{
			name: "free text kept whole",
			text: "Knee valgus detected on the left side.",
			want: domain.Finding{Note: "Knee valgus detected on the left side."},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFinding(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestParseFinding_Empty(t *testing.T) {
	_, err := parseFinding("   ")
	assert.Error(t, err)
}

func TestProcessingError(t *testing.T) {
	failed := &genai.File{
		Name:  "files/abc",
		State: genai.FileStateFailed,
		Error: &genai.FileStatus{Message: "unsupported codec"},
	}
	err := processingError(failed)
	assert.ErrorContains(t, err, "files/abc")
	assert.ErrorContains(t, err, "unsupported codec")

	bare := &genai.File{Name: "files/def", State: genai.FileStateFailed}
	assert.ErrorContains(t, processingError(bare), "FAILED")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, domain.ErrQuotaExceeded},
		{"resource exhausted", fmt.Errorf("upload: %w", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}), domain.ErrQuotaExceeded},
		{"gateway timeout", genai.APIError{Code: 504, Message: "slow"}, domain.ErrTimeout},
		{"deadline", context.DeadlineExceeded, domain.ErrTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tc.err), tc.want)
		})
	}

	plain := errors.New("bad request")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}

func TestFindingSchema(t *testing.T) {
	s := findingSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"region", "severity", "note"}, s.Required)

	regions := s.Properties["region"].Enum
	assert.True(t, slices.Contains(regions, "none"))
	for _, tag := range domain.RegionTags() {
		assert.Contains(t, regions, tag)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("  left knee on landing ")
	assert.True(t, strings.HasPrefix(p, "Target for this audit: left knee on landing\n"))
	assert.Contains(t, p, "right_ankle")
}
