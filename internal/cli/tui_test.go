package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"tube-transcriber/internal/domain"
	"tube-transcriber/internal/service"
)

func TestBatchModelTracksStages(t *testing.T) {
	m := newBatchModel(nil)

	for i := 1; i <= 4; i++ {
		next, _ := m.Update(stageMsg{index: i, stage: domain.ItemStagePending})
		m = next.(batchModel)
	}
	next, _ := m.Update(stageMsg{index: 1, stage: domain.ItemStageSucceeded})
	m = next.(batchModel)
	next, _ = m.Update(stageMsg{index: 2, stage: domain.ItemStageFailed})
	m = next.(batchModel)

	assert.Equal(t, 4, m.total)
	assert.Equal(t, 2, m.finished)
	assert.Equal(t, 1, m.failed)
	assert.InDelta(t, 0.5, m.percent(), 1e-9)
	assert.Contains(t, m.renderContent(), "2/4 videos")
}

func TestBatchModelKeepsRecentLines(t *testing.T) {
	m := newBatchModel(nil)
	for i := 0; i < maxLogLines+3; i++ {
		next, _ := m.Update(lineMsg("line"))
		m = next.(batchModel)
	}
	next, _ := m.Update(lineMsg("[2/3] Processing: https://youtu.be/x"))
	m = next.(batchModel)
	next, _ = m.Update(lineMsg(""))
	m = next.(batchModel)

	assert.Len(t, m.lines, maxLogLines)
	assert.Equal(t, "[2/3] Processing: https://youtu.be/x", m.current)
}

func TestBatchModelDone(t *testing.T) {
	m := newBatchModel(nil)
	rep := domain.RunReport{Total: 1, Outcomes: []domain.ItemOutcome{domain.SuccessOutcome(1, "r", "t", "/out/t.txt")}}

	next, cmd := m.Update(doneMsg{res: service.Result{Report: rep}})
	m = next.(batchModel)

	assert.True(t, m.done)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.renderContent(), "1 succeeded, 0 failed")

	next, _ = newBatchModel(nil).Update(doneMsg{err: errors.New("boom")})
	assert.Contains(t, next.(batchModel).renderContent(), "boom")
}
