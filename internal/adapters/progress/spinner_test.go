package progress

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

func TestSpinnerSink_StepLines(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	sink := newSpinnerSink(&buf)
	ctx := context.Background()

	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StagePlan, Total: 2, Message: "deploying 2 steps to localhost"})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStep, Current: 1, Total: 2, Message: "Config", Spinner: true})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageTx, Message: "deploying Config", Spinner: true})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStepDone, Current: 1, Total: 2, Metadata: &usecase.StepResult{
		Name: "Config", Outcome: domain.StepDeployed, Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Transactions: 1,
	}})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStep, Current: 2, Total: 2, Message: "Kiki", Spinner: true})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStepDone, Current: 2, Total: 2, Metadata: &usecase.StepResult{
		Name: "Kiki", Outcome: domain.StepFailed, Error: errors.New("execution reverted"),
	}})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageCompleted})

	out := buf.String()
	assert.Contains(t, out, "deploying 2 steps to localhost")
	assert.Contains(t, out, "✓ [1/2] Config deployed 0x5FbDB2315678afecb367f032d93F642f64180aa3 (1 tx,")
	assert.Contains(t, out, "✗ [2/2] Kiki failed")
	assert.Contains(t, out, "  execution reverted")
	assert.False(t, sink.spinner.Active())
}

func TestSpinnerSink_InfoAndError(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	sink := newSpinnerSink(&buf)

	sink.Info("forking sepolia, manifest not updated")
	sink.Error("boom")

	assert.Contains(t, buf.String(), "forking sepolia, manifest not updated\n")
	assert.Contains(t, buf.String(), "boom\n")
}
