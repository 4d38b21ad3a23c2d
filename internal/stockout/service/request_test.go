package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stockout/repository"
	"github.com/stockflow/stockflow-backend/internal/stockout/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

type requestFixture struct {
	requests  *fakeRequests
	processed *fakeProcessed
	events    *fakeEvents
	svc       *service.RequestService
}

func newRequestFixture() *requestFixture {
	requests := newFakeRequests()
	processed := &fakeProcessed{}
	events := &fakeEvents{}

	return &requestFixture{
		requests:  requests,
		processed: processed,
		events:    events,
		svc:       service.NewRequestService(requests, processed, events, testLogger()),
	}
}

func TestRequestCreate_RecordsActorAsRequester(t *testing.T) {
	f := newRequestFixture()

	req, err := f.svc.Create(operatorContext(), service.CreateRequestInput{
		ProductID:         "p1",
		ProductName:       "Widget",
		RequestedQuantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1", req.RequesterID)
	assert.Equal(t, repository.RequestStatusPending, req.Status)
}

func TestRequestReject_PublishesRejectedEvent(t *testing.T) {
	f := newRequestFixture()
	f.requests.add(request("r1", "p1", 10))

	req, err := f.svc.Reject(operatorContext(), "r1")
	require.NoError(t, err)

	assert.Equal(t, repository.RequestStatusRejected, req.Status)
	assert.Equal(t, []string{"r1"}, f.events.rejected)
}

func TestRequestReject_TerminalStatusConflicts(t *testing.T) {
	f := newRequestFixture()
	req := request("r1", "p1", 10)
	req.Status = repository.RequestStatusCompleted
	f.requests.add(req)

	_, err := f.svc.Reject(operatorContext(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be rejected")
	assert.Empty(t, f.events.rejected, "no event for a reject that did not apply")
}

func TestRequestAuditTrail_ReturnsSnapshotsPerScan(t *testing.T) {
	f := newRequestFixture()
	f.requests.add(request("r1", "p1", 10))

	ctx := context.Background()
	require.NoError(t, f.processed.CreateWithAudit(ctx,
		&repository.ProcessedItem{StockOutID: "r1", BatchItemID: "u1", ProductID: "p1", Quantity: 6},
		&repository.ProcessedItemAudit{ProductName: "Widget"}))
	require.NoError(t, f.processed.CreateWithAudit(ctx,
		&repository.ProcessedItem{StockOutID: "r1", BatchItemID: "u2", ProductID: "p1", Quantity: 4},
		&repository.ProcessedItemAudit{ProductName: "Widget"}))

	audits, err := f.svc.AuditTrail(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, audits, 2)
}

func TestRequestAuditTrail_UnknownRequest(t *testing.T) {
	f := newRequestFixture()

	_, err := f.svc.AuditTrail(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
