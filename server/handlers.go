package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/barkprotocol/blinks/actions"
	"github.com/barkprotocol/blinks/checkout"
	"github.com/barkprotocol/blinks/registry"
	"github.com/barkprotocol/blinks/types"
	"github.com/barkprotocol/blinks/utils"
)

func (s *Server) describeAction(c *gin.Context) {
	name := c.Param("action")
	origin := actions.Origin(c.Request, s.baseURL, s.fromTrustedProxy(c))

	descriptor, err := s.blinks.Describe(origin, name, c.Request.URL.Query())
	if err != nil {
		s.plainError(c, err)
		return
	}
	c.JSON(http.StatusOK, descriptor)
}

func (s *Server) buildTransaction(c *gin.Context) {
	var body types.ActionPostRequest
	if err := utils.ParseBody(c.Request.Body, &body); err != nil {
		s.plainError(c, types.WrapError(types.ErrInvalidAccount, "invalid account", err))
		return
	}

	resp, err := s.blinks.BuildTransaction(c.Request.Context(), c.Param("action"), c.Request.URL.Query(), body.Account)
	if err != nil {
		s.plainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listRules(c *gin.Context) {
	c.JSON(http.StatusOK, types.RulesResponse{Rules: s.blinks.Rules().List()})
}

func (s *Server) addRule(c *gin.Context) {
	var rule types.Rule
	if err := utils.ParseBody(c.Request.Body, &rule); err != nil {
		s.jsonError(c, err)
		return
	}

	added, err := s.blinks.Rules().Add(rule)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (s *Server) updateRule(c *gin.Context) {
	var rule types.Rule
	if err := utils.ParseBody(c.Request.Body, &rule); err != nil {
		s.jsonError(c, err)
		return
	}

	updated, err := s.blinks.Rules().Update(rule)
	if err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteRule(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rule ID is required"})
		return
	}

	if err := s.blinks.Rules().Delete(id); err != nil {
		s.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

func (s *Server) ruleError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) checkout(c *gin.Context) {
	resp, err := s.blinks.Checkout(c.Request.Context(), checkout.Request{
		Amount:   c.Query("amount"),
		SPLToken: c.Query("splToken"),
		Label:    c.Query("label"),
		Message:  c.Query("message"),
		Memo:     c.Query("memo"),
		Account:  c.Query("account"),
	})
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// status polls for a payment by reference; the status field carries the outcome
func (s *Server) status(c *gin.Context) {
	result, err := s.blinks.VerifyReference(c.Request.Context(), c.Query("reference"), c.Query("amount"), c.Query("splToken"))
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) webhook(c *gin.Context) {
	var body types.WebhookRequest
	if err := utils.ParseBody(c.Request.Body, &body); err != nil {
		s.jsonError(c, err)
		return
	}

	result, err := s.blinks.Verify(c.Request.Context(), &body)
	if err != nil {
		s.jsonError(c, err)
		return
	}

	if !result.Status.IsConfirmed() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  result.Reason,
			"status": result.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": result,
	})
}

// plainError answers action routes, whose clients expect a text body
func (s *Server) plainError(c *gin.Context, err error) {
	status := types.HTTPStatus(err)
	s.logError(c, status, err)
	c.String(status, types.PublicMessage(err))
}

func (s *Server) jsonError(c *gin.Context, err error) {
	status := types.HTTPStatus(err)
	s.logError(c, status, err)
	c.JSON(status, gin.H{"error": types.PublicMessage(err)})
}

func (s *Server) logError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]any{
			"path":  c.Request.URL.Path,
			"code":  types.ErrorCode(err),
			"error": err,
		})
	}
}
