package router

import (
	"errors"
	"io"
	"net/http"

	"book_pay/internal/config"
	"book_pay/internal/middleware"
	"book_pay/internal/model"
	"book_pay/internal/service"
	"book_pay/internal/upload"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Setup 注册全部 HTTP 路由。
// 响应约定：成功 {"success":true,"data":...}；失败 {"error":...,"code":...}。
func Setup(r *gin.Engine, requests *service.Requests, confirmations *service.Confirmations,
	rdb *rd.Client, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// 用户侧：JWT 认证
	user := r.Group("/api/payments", middleware.JWTAuth(cfg.JWTSecret))
	user.POST("/requests", createRequest(requests))
	user.GET("/requests/:id", getRequest(requests))
	user.GET("/options/:id", paymentOptions(requests))
	user.POST("/confirmations/upload",
		middleware.RedisRateLimit(rdb, cfg.UploadRateLimit, cfg.UploadRateWindow),
		uploadConfirmation(confirmations))

	// 管理端：固定令牌
	admin := r.Group("/api", middleware.AdminToken(cfg.AdminToken))
	admin.GET("/payments/confirmations/:purchaseRequestId", listConfirmations(confirmations))
	admin.POST("/admin/requests/:id/status", transitionRequest(requests))
	admin.POST("/admin/confirmations/:id/review", reviewConfirmation(confirmations))
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

// writeServiceError 把服务层哨兵错误映射为稳定的 HTTP code。
func writeServiceError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "file validation failed",
			"code":   "FILE_VALIDATION_FAILED",
			"errors": vErr.Errors,
		})
	case errors.Is(err, service.ErrInsufficientData):
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, service.ErrPurchaseNotFound):
		fail(c, http.StatusNotFound, "PURCHASE_NOT_FOUND", "purchase request not found")
	case errors.Is(err, service.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, "INVALID_STATUS", err.Error())
	case errors.Is(err, service.ErrPathGeneration):
		fail(c, http.StatusInternalServerError, "PATH_GENERATION_FAILED", "could not generate storage path")
	case errors.Is(err, service.ErrStorageUpload):
		fail(c, http.StatusInternalServerError, "STORAGE_UPLOAD_FAILED", "could not store uploaded file")
	case errors.Is(err, service.ErrDatabaseInsert), errors.Is(err, service.ErrDatabaseWrite):
		fail(c, http.StatusInternalServerError, "DATABASE_INSERT_FAILED", "could not persist record")
	default:
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// createRequest 用户发起购买意向。
func createRequest(requests *service.Requests) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ItemType               string `json:"item_type" binding:"required"`
			ItemID                 string `json:"item_id" binding:"required"`
			Amount                 int64  `json:"amount" binding:"required,min=1"`
			PreferredContactMethod string `json:"preferred_contact_method"`
			UserMessage            string `json:"user_message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}

		pr, err := requests.Create(c.Request.Context(), middleware.UserID(c), service.CreateInput{
			ItemType:               model.ItemType(req.ItemType),
			ItemID:                 req.ItemID,
			Amount:                 req.Amount,
			PreferredContactMethod: req.PreferredContactMethod,
			UserMessage:            req.UserMessage,
		})
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, pr)
	}
}

// getRequest 归属用户查看自己的购买请求。
func getRequest(requests *service.Requests) gin.HandlerFunc {
	return func(c *gin.Context) {
		pr, err := requests.GetOwned(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, pr)
	}
}

// paymentOptions 展示钱包 deep link 与转账账户信息。
func paymentOptions(requests *service.Requests) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := requests.PaymentOptions(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, opts)
	}
}

// uploadConfirmation 凭证上传入口：multipart 表单
// file（二进制）+ purchaseRequestId + 可选 transactionReference。
func uploadConfirmation(confirmations *service.Confirmations) gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseRequestID := c.PostForm("purchaseRequestId")
		fileHeader, err := c.FormFile("file")
		if err != nil || purchaseRequestID == "" {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", "file and purchaseRequestId are required")
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", "could not read uploaded file")
			return
		}
		defer f.Close()

		// 读取上限多留一个字节，让超限文件走校验器的统一错误
		data, err := io.ReadAll(io.LimitReader(f, upload.MaxFileSize+1))
		if err != nil {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", "could not read uploaded file")
			return
		}

		res, err := confirmations.Upload(c.Request.Context(), middleware.UserID(c), service.UploadInput{
			PurchaseRequestID:    purchaseRequestID,
			TransactionReference: c.PostForm("transactionReference"),
			File: upload.File{
				Name:         fileHeader.Filename,
				DeclaredType: fileHeader.Header.Get("Content-Type"),
				Size:         fileHeader.Size,
				Bytes:        data,
			},
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			UserEmail: middleware.UserEmail(c),
		})
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, res)
	}
}

// listConfirmations 管理员按购买请求查看凭证（带限时签名下载链接）。
func listConfirmations(confirmations *service.Confirmations) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := confirmations.ListForRequest(c.Request.Context(), c.Param("purchaseRequestId"))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, views)
	}
}

// transitionRequest 管理员流转购买请求状态。
func transitionRequest(requests *service.Requests) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Notes  string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}

		pr, err := requests.Transition(c.Request.Context(), c.Param("id"),
			model.PurchaseRequestStatus(req.Status), req.Notes)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, pr)
	}
}

// reviewConfirmation 管理员裁定单份凭证。
func reviewConfirmation(confirmations *service.Confirmations) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status     string `json:"status" binding:"required"`
			Notes      string `json:"notes"`
			ReviewedBy string `json:"reviewed_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}

		err := confirmations.Review(c.Request.Context(), c.Param("id"),
			model.ConfirmationStatus(req.Status), req.Notes, req.ReviewedBy)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		ok(c, gin.H{"id": c.Param("id"), "status": req.Status})
	}
}
