package middleware

import (
	"net/http"

	v1 "collectivewatch/api/v1"
	"collectivewatch/pkg/jwt"
	"collectivewatch/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StrictAuth 未配置 security.jwt.key 时放行所有请求
func StrictAuth(j *jwt.JWT, logger *log.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !j.Enabled() {
			ctx.Next()
			return
		}
		tokenString := ctx.Request.Header.Get("Authorization")
		if tokenString == "" {
			// websocket 客户端无法设置 header
			tokenString = ctx.Query("token")
		}
		if tokenString == "" {
			logger.WithContext(ctx).Warn("No token", zap.Any("url", ctx.Request.URL.Path))
			v1.HandleError(ctx, http.StatusUnauthorized, v1.ErrUnauthorized, nil)
			ctx.Abort()
			return
		}

		claims, err := j.ParseToken(tokenString)
		if err != nil {
			logger.WithContext(ctx).Warn("token error", zap.Any("url", ctx.Request.URL.Path), zap.Error(err))
			v1.HandleError(ctx, http.StatusUnauthorized, v1.ErrUnauthorized, nil)
			ctx.Abort()
			return
		}

		ctx.Set("claims", claims)
		logger.WithValue(ctx, zap.String("subject", claims.Subject))
		ctx.Next()
	}
}
