package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/web3nomad/Rabby/internal/handler/request"
	"github.com/web3nomad/Rabby/internal/handler/response"
	"github.com/web3nomad/Rabby/internal/service/approval"
)

// OpenSign 打开一个 typed data 签名评审
// @Summary Open a typed-data signature review
// @Tags Sign
// @Accept json
// @Produce json
// @Param request body request.OpenSignRequest true "Sign Request"
// @Success 200 {object} response.Response{data=approval.SignSnapshot}
// @Router /api/v1/signs [post]
func (h *ReviewHandler) OpenSign(c *gin.Context) {
	var req request.OpenSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	account, err := toAccount(req.Account)
	if err != nil {
		response.Error(c, err)
		return
	}
	s, err := h.svc.OpenSign(c.Request.Context(), approval.SignRequest{
		Method:  req.Method,
		Params:  req.Params,
		Origin:  req.Origin,
		Account: account,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sessions.PutSign(s)
	response.Success(c, s.Snapshot())
}

func (h *ReviewHandler) signSession(c *gin.Context) (*approval.SignSession, bool) {
	s, err := h.sessions.GetSign(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return s, true
}

// GetSign
// @Summary Get a typed-data signature review
// @Tags Sign
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Response{data=approval.SignSnapshot}
// @Router /api/v1/signs/{id} [get]
func (h *ReviewHandler) GetSign(c *gin.Context) {
	s, ok := h.signSession(c)
	if !ok {
		return
	}
	response.Success(c, s.Snapshot())
}

// CheckSign 触发 v1 typed data 的安全检查并等待结果
// @Summary Run the security check of a typed-data review
// @Tags Sign
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Response{data=approval.SignSnapshot}
// @Router /api/v1/signs/{id}/check [post]
func (h *ReviewHandler) CheckSign(c *gin.Context) {
	s, ok := h.signSession(c)
	if !ok {
		return
	}
	s.CheckNow(c.Request.Context())
	response.Success(c, s.Snapshot())
}

// ForceSign
// @Summary Toggle force process of a typed-data review
// @Tags Sign
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.ToggleRequest true "Force Process"
// @Success 200 {object} response.Response{data=approval.SignSnapshot}
// @Router /api/v1/signs/{id}/force [post]
func (h *ReviewHandler) ForceSign(c *gin.Context) {
	s, ok := h.signSession(c)
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

// AllowSign
// @Summary Approve a typed-data signature
// @Tags Sign
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body request.AllowRequest false "Allow"
// @Success 200 {object} response.Response
// @Router /api/v1/signs/{id}/allow [post]
func (h *ReviewHandler) AllowSign(c *gin.Context) {
	s, ok := h.signSession(c)
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
	if err := s.Allow(req.DoubleCheck); err != nil {
		response.Error(c, editError(err))
		return
	}
	h.sessions.Remove(s.ID)
	response.Success(c, gin.H{"approved": true})
}
