package api

import (
	"io"
	"net/http"

	"github.com/constructlink/constructlink/internal/model"
	"github.com/constructlink/constructlink/internal/workflow"
)

// BatchesHandler exposes the borrowing workflow. Every transition endpoint is
// a thin shell around the executor: decode, execute, map errors.
type BatchesHandler struct {
	Executor *workflow.Executor
}

// Create handles POST /api/batches.
func (h *BatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input workflow.CreateBatchInput
	if err := decodeJSON(r, &input); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch, err := h.Executor.CreateBatch(r.Context(), GetActor(r.Context()), input)
	if err != nil {
		workflowError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, batch)
}

// List handles GET /api/batches.
func (h *BatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.WorkflowState(r.URL.Query().Get("status"))

	views, err := h.Executor.ListBatches(r.Context(), GetActor(r.Context()), status)
	if err != nil {
		workflowError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, views)
}

// Get handles GET /api/batches/{id}.
func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	view, err := h.Executor.GetBatchView(r.Context(), GetActor(r.Context()), id)
	if err != nil {
		workflowError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// execute decodes the payload, runs the transition, and writes the result.
func (h *BatchesHandler) execute(w http.ResponseWriter, r *http.Request, action model.Action, payload any) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	// An empty body is fine for transitions whose payload is all-optional.
	if err := decodeJSON(r, payload); err != nil && err != io.EOF {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var value any
	switch p := payload.(type) {
	case *workflow.SubmitPayload:
		value = *p
	case *workflow.UpdatePayload:
		value = *p
	case *workflow.VerifyPayload:
		value = *p
	case *workflow.ApprovePayload:
		value = *p
	case *workflow.ReleasePayload:
		value = *p
	case *workflow.ReturnPayload:
		value = *p
	case *workflow.ExtendPayload:
		value = *p
	case *workflow.CancelPayload:
		value = *p
	}

	batch, err := h.Executor.Execute(r.Context(), id, action, GetActor(r.Context()), value)
	if err != nil {
		workflowError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, batch)
}

// Submit handles POST /api/batches/{id}/submit.
func (h *BatchesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionSubmit, &workflow.SubmitPayload{})
}

// Update handles PUT /api/batches/{id}.
func (h *BatchesHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionUpdate, &workflow.UpdatePayload{})
}

// Verify handles POST /api/batches/{id}/verify.
func (h *BatchesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionVerify, &workflow.VerifyPayload{})
}

// Approve handles POST /api/batches/{id}/approve.
func (h *BatchesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionApprove, &workflow.ApprovePayload{})
}

// Release handles POST /api/batches/{id}/release.
func (h *BatchesHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionBorrow, &workflow.ReleasePayload{})
}

// Return handles POST /api/batches/{id}/return.
func (h *BatchesHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionReturn, &workflow.ReturnPayload{})
}

// Extend handles POST /api/batches/{id}/extend.
func (h *BatchesHandler) Extend(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionExtend, &workflow.ExtendPayload{})
}

// Cancel handles POST /api/batches/{id}/cancel.
func (h *BatchesHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, model.ActionCancel, &workflow.CancelPayload{})
}
