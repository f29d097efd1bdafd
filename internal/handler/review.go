package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/web3nomad/Rabby/internal/handler/request"
	"github.com/web3nomad/Rabby/internal/handler/response"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/approval"
	"github.com/web3nomad/Rabby/internal/service/normalize"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/validator"
)

var accountTypes = map[string]model.AccountType{
	string(model.AccountMnemonic):   model.AccountMnemonic,
	string(model.AccountPrivateKey): model.AccountPrivateKey,
	string(model.AccountHardware):   model.AccountHardware,
	string(model.AccountWatch):      model.AccountWatch,
	string(model.AccountGnosis):     model.AccountGnosis,
}

// ReviewHandler exposes transaction and typed-data review sessions.
type ReviewHandler struct {
	svc      *approval.Service
	sessions *approval.Registry
}

func NewReviewHandler(svc *approval.Service, sessions *approval.Registry) *ReviewHandler {
	return &ReviewHandler{svc: svc, sessions: sessions}
}

func bindError(err error) error {
	return errno.ErrBind.WithMessage(validator.GetErrorMsg(err))
}

func toAccount(req request.AccountRequest) (model.Account, error) {
	t, ok := accountTypes[req.Type]
	if !ok {
		return model.Account{}, errno.ErrInvalidParam.WithMessage(fmt.Sprintf("unknown account type %q", req.Type))
	}
	return model.Account{Address: req.Address, Type: t}, nil
}

// Open 打开一个交易评审会话
// @Summary Open a transaction review
// @Description Normalizes the transaction, recommends gas and nonce and evaluates the risk findings
// @Tags Review
// @Accept json
// @Produce json
// @Param request body request.OpenReviewRequest true "Review Request"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews [post]
func (h *ReviewHandler) Open(c *gin.Context) {
	var req request.OpenReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	account, err := toAccount(req.Account)
	if err != nil {
		response.Error(c, err)
		return
	}

	s := h.svc.Open(c.Request.Context(), approval.Request{
		Tx:            normalize.RawTx(req.Tx),
		Origin:        req.Origin,
		Account:       account,
		SafeNetworkID: req.SafeNetworkID,
	})
	h.sessions.Put(s)
	response.Success(c, s.Snapshot())
}

func (h *ReviewHandler) session(c *gin.Context) (*approval.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return s, true
}

// Get 查询评审状态
// @Summary Get a transaction review
// @Tags Review
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews/{id} [get]
func (h *ReviewHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, s.Snapshot())
}

// Refresh 重新拉取链上状态并重新评估
// @Summary Re-run the explain pipeline
// @Tags Review
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews/{id}/refresh [post]
func (h *ReviewHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Refresh(c.Request.Context())
	response.Success(c, s.Snapshot())
}

// ChangeGas 修改 gas 档位, gas limit 和 nonce
// @Summary Apply a gas editor change
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.GasChangeRequest true "Gas Change"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews/{id}/gas [post]
func (h *ReviewHandler) ChangeGas(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req request.GasChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if err := s.ValidateGasEdit(req.GasLimit, req.Nonce); err != nil {
		response.Error(c, errno.ErrInvalidParam.WithMessage(err.Error()))
		return
	}
	gasLimit, err := strconv.ParseUint(req.GasLimit, 10, 64)
	if err != nil {
		response.Error(c, errno.ErrInvalidParam.WithMessage("gasLimit must be an integer"))
		return
	}

	err = s.ChangeGas(c.Request.Context(), approval.GasChange{
		Level:    req.Level,
		Price:    req.Price,
		GasLimit: gasLimit,
		Nonce:    req.Nonce,
	})
	if err != nil {
		response.Error(c, editError(err))
		return
	}
	response.Success(c, s.Snapshot())
}

// SetCustomGas 自定义 gas price (gwei), 停止输入后才生效
// @Summary Type a custom gas price
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.CustomGasRequest true "Custom Gas"
// @Success 200 {object} response.Response
// @Router /api/v1/reviews/{id}/custom-gas [post]
func (h *ReviewHandler) SetCustomGas(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req request.CustomGasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if err := s.SetCustomGas(req.Gwei); err != nil {
		response.Error(c, editError(err))
		return
	}
	response.Success(c, gin.H{"accepted": true})
}

// Acknowledge 确认 warn/danger 风险
// @Summary Acknowledge warn and danger findings
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.ToggleRequest true "Acknowledgement"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews/{id}/ack [post]
func (h *ReviewHandler) Acknowledge(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req request.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	s.Acknowledge(*req.Value)
	response.Success(c, s.Snapshot())
}

// Force 切换安全检查的 force process
// @Summary Toggle force process on a warn or danger security decision
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.ToggleRequest true "Force Process"
// @Success 200 {object} response.Response{data=approval.Snapshot}
// @Router /api/v1/reviews/{id}/force [post]
func (h *ReviewHandler) Force(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req request.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if err := s.SetForceProcess(*req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s.Snapshot())
}

// Allow 通过评审, 返回交给签名器的交易
// @Summary Approve the transaction
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.AllowRequest false "Allow"
// @Success 200 {object} response.Response{data=model.Submission}
// @Router /api/v1/reviews/{id}/allow [post]
func (h *ReviewHandler) Allow(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req request.AllowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
	}
	sub, err := s.Allow(c.Request.Context(), req.DoubleCheck)
	if err != nil {
		response.Error(c, editError(err))
		return
	}
	response.Success(c, sub)
}

// Close 关闭评审会话
// @Summary Close a review
// @Tags Review
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Response
// @Router /api/v1/reviews/{id} [delete]
func (h *ReviewHandler) Close(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	h.sessions.Remove(c.Param("id"))
	response.Success(c, nil)
}

// editError maps session state errors that are not errno codes yet.
func editError(err error) error {
	switch {
	case errors.Is(err, approval.ErrNotReady),
		errors.Is(err, approval.ErrSubmitted),
		errors.Is(err, approval.ErrClosed),
		errors.Is(err, approval.ErrSecurityPending):
		return errno.Wrap(errno.ErrNotSubmittable, err)
	case errors.Is(err, approval.ErrUnknownGasLevel),
		errors.Is(err, approval.ErrCustomPriceEmpty):
		return errno.Wrap(errno.ErrInvalidParam, err)
	}
	return err
}
