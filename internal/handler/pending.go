package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/web3nomad/Rabby/internal/handler/request"
	"github.com/web3nomad/Rabby/internal/handler/response"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
)

// PendingQueue is the local outbound queue read by nonce recommendation and pre-exec.
type PendingQueue interface {
	List(ctx context.Context, chainID int64, address string) ([]model.PendingTransaction, error)
	Add(ctx context.Context, tx model.PendingTransaction) error
}

type PendingHandler struct {
	queue PendingQueue
}

func NewPendingHandler(queue PendingQueue) *PendingHandler {
	return &PendingHandler{queue: queue}
}

// Add 记录一笔已广播但未确认的交易
// @Summary Record a broadcast transaction
// @Tags Pending
// @Accept json
// @Produce json
// @Param request body request.PendingTxRequest true "Pending Tx"
// @Success 200 {object} response.Response
// @Router /api/v1/pending [post]
func (h *PendingHandler) Add(c *gin.Context) {
	var req request.PendingTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	tx := model.PendingTransaction{
		ChainID:      req.ChainID,
		Hash:         req.Hash,
		Nonce:        req.Nonce,
		From:         req.From,
		To:           req.To,
		Data:         req.Data,
		Value:        req.Value,
		GasPrice:     req.GasPrice,
		MaxFeePerGas: req.MaxFeePerGas,
		GasUsed:      req.GasUsed,
		GasLimit:     req.GasLimit,
		CreatedAt:    time.Now().Unix(),
	}
	if err := h.queue.Add(c.Request.Context(), tx); err != nil {
		response.Error(c, errno.InternalServerError.WithMessage(err.Error()))
		return
	}
	response.Success(c, nil)
}

// List 查询账户的本地 pending 队列
// @Summary List an account's pending transactions
// @Tags Pending
// @Produce json
// @Param chainId query int true "Chain ID"
// @Param address query string true "Address"
// @Success 200 {object} response.Response{data=[]model.PendingTransaction}
// @Router /api/v1/pending [get]
func (h *PendingHandler) List(c *gin.Context) {
	var q request.PendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, bindError(err))
		return
	}
	list, err := h.queue.List(c.Request.Context(), q.ChainID, q.Address)
	if err != nil {
		response.Error(c, errno.InternalServerError.WithMessage(err.Error()))
		return
	}
	if list == nil {
		list = []model.PendingTransaction{}
	}
	response.Success(c, list)
}
