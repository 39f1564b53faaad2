package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRequisition(t *testing.T) {
	res := DetectRequisition("Pedido de exames", "Hemograma completo\nGlicose em jejum", "", nil)
	assert.True(t, res.IsRequisition)
	assert.Equal(t, "rules_positive", res.Reason)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestDetectRequisitionNegative(t *testing.T) {
	res := DetectRequisition("Reuniao de segunda", "Confirmo presenca na reuniao.", "", nil)
	assert.False(t, res.IsRequisition)
	assert.Equal(t, "rules_negative", res.Reason)
}

func TestDetectRequisitionAttachmentAndTable(t *testing.T) {
	res := DetectRequisition("Fwd:", "", "<table><tr><td>x</td></tr></table>", []string{"guia.PDF"})
	assert.True(t, res.IsRequisition)
	assert.InDelta(t, 0.5, res.Score, 0.001)
}
