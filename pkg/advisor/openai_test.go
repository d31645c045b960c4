package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compasshq/keel/pkg/contracts"
)

func TestParseRecommendation(t *testing.T) {
	rec, err := parseRecommendation(`{
		"text": "Raise the Q3 target.",
		"proposed_actions": [
			{"type": "updateKpiTarget", "target_entity_id": "k1", "payload": {"target": 500}}
		]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "Raise the Q3 target.", rec.Text)
	require.Len(t, rec.ProposedActions, 1)
	assert.Equal(t, "updateKpiTarget", rec.ProposedActions[0].Type)
	assert.Equal(t, "k1", rec.ProposedActions[0].TargetEntityID)
}

func TestParseRecommendationFencedBlock(t *testing.T) {
	rec, err := parseRecommendation("```json\n{\"text\": \"No changes needed.\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "No changes needed.", rec.Text)
	assert.Empty(t, rec.ProposedActions)
}

func TestParseRecommendationRejectsGarbage(t *testing.T) {
	_, err := parseRecommendation("I think you should probably just wing it")
	require.Error(t, err)

	_, err = parseRecommendation(`{"proposed_actions": []}`)
	require.Error(t, err, "empty text is invalid")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, contracts.KindCollaboratorTimeout, contracts.KindOf(classify(context.DeadlineExceeded)))
	assert.Equal(t, contracts.KindCollaboratorTimeout, contracts.KindOf(classify(context.Canceled)))
	assert.Equal(t, contracts.KindCollaboratorError, contracts.KindOf(classify(errors.New("connection refused"))))
}
