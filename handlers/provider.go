package handlers

import (
	jwtmw "github.com/AlessandroSilveira/PlanWriter-sub001/middleware/jwt"
	"github.com/AlessandroSilveira/PlanWriter-sub001/server"
	"github.com/AlessandroSilveira/PlanWriter-sub001/services/jwt"
	"go.uber.org/fx"
)

func RegisterRoutes(srv *server.Server, authHandler *AuthHandler, mfaHandler *MfaHandler, jwtService *jwt.Service) {
	srv.Post("/auth/login", authHandler.Login)
	srv.Post("/auth/refresh", authHandler.Refresh)
	srv.Post("/auth/logout", authHandler.Logout)

	authenticated := srv.Group("/auth", jwtmw.RequireJWT(jwtService))
	authenticated.POST("/logout-all", authHandler.LogoutAll)
	authenticated.GET("/sessions", authHandler.Sessions)

	admin := srv.Group("/admin/mfa", jwtmw.RequireJWT(jwtService), mfaHandler.RequireAdmin)
	admin.POST("/enroll", mfaHandler.Enroll)
	admin.POST("/enroll/confirm", mfaHandler.ConfirmEnrollment)
	admin.POST("/validate", mfaHandler.Validate)
	admin.POST("/backup-codes/regenerate", mfaHandler.RegenerateBackupCodes)
	admin.POST("/disable", mfaHandler.Disable)
}

var Options = fx.Options(
	fx.Provide(NewAuthHandler),
	fx.Provide(NewMfaHandler),
	fx.Invoke(RegisterRoutes),
)
