package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/middleware"
	"github.com/noah-isme/genius-academy-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth         *AuthHandler
	Accounts     *AccountHandler
	Exports      *ExportHandler
	TeacherInfos *TeacherInfoHandler
	Activity     *ActivityHandler
	Media        *MediaHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts the API on api. Probes and metrics go on root.
func RegisterRoutes(root *gin.Engine, api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator, recorder middleware.ActivityRecorder) {
	authed := middleware.JWT(tokens)
	admin := middleware.RequireRoles(models.RoleAdmin)
	managers := middleware.AccountManagers()
	track := func(action, resource string) gin.HandlerFunc {
		return middleware.Activity(recorder, action, resource)
	}

	root.GET("/health", h.Metrics.Health)
	root.GET("/ready", h.Metrics.Ready)
	root.GET("/metrics", h.Metrics.Prometheus)
	api.GET("/health", h.Metrics.Health)
	api.GET("/ready", h.Metrics.Ready)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", authed, h.Auth.Logout)
	auth.POST("/change-password", authed, track(models.ActivityPasswordChange, "account"), h.Auth.ChangePassword)
	auth.GET("/me", authed, h.Auth.Me)

	api.POST("/register/:role", track(models.ActivityAccountCreate, "account"), h.Accounts.SelfRegister)
	api.GET("/media/:token", h.Media.Serve)

	accounts := api.Group("/accounts")
	accounts.GET("/username-available", h.Accounts.UsernameAvailable)
	accounts.POST("", authed, managers, track(models.ActivityAccountCreate, "account"), h.Accounts.Create)
	accounts.GET("", authed, admin, h.Accounts.List)
	accounts.GET("/stats", authed, admin, h.Accounts.Stats)
	accounts.GET("/:id", authed, middleware.RBAC(string(models.RoleAdmin), middleware.Self), h.Accounts.Get)
	accounts.PUT("/:id/profile", authed, middleware.AccountManagers(middleware.Self), track(models.ActivityAccountUpdate, "account"), h.Accounts.UpdateProfile)
	accounts.PUT("/:id/role-profile", authed, managers, track(models.ActivityAccountUpdate, "account"), h.Accounts.UpdateRoleProfile)
	accounts.PUT("/:id/picture", authed, middleware.AccountManagers(middleware.Self), track(models.ActivityAccountUpdate, "picture"), h.Accounts.UploadPicture)
	accounts.POST("/:id/credentials/issue", authed, managers, track(models.ActivityCredentialIssue, "account"), h.Accounts.IssueCredentials)
	accounts.POST("/:id/credentials/reset", authed, managers, track(models.ActivityCredentialReset, "account"), h.Accounts.ResetCredentials)
	accounts.DELETE("/:id", authed, managers, track(models.ActivityAccountDelete, "account"), h.Accounts.Delete)

	api.DELETE("/students/:id", authed, managers, track(models.ActivityAccountDelete, "student"), h.Accounts.DeleteStudent)
	api.DELETE("/parents/:id", authed, managers, track(models.ActivityAccountDelete, "parent"), h.Accounts.DeleteParent)

	api.GET("/exports/:role", authed, admin, h.Exports.Export)
	api.GET("/activity", authed, admin, h.Activity.List)

	// Ownership is checked by the service; the role gate only keeps other roles out.
	sheets := api.Group("/teacher-infos", authed, middleware.RequireRoles(models.RoleLecturer, models.RoleAdmin))
	sheets.POST("", track(models.ActivityTeacherInfoWrite, "teacher_info"), h.TeacherInfos.Create)
	sheets.GET("", h.TeacherInfos.List)
	sheets.GET("/:id", h.TeacherInfos.Get)
	sheets.PUT("/:id", track(models.ActivityTeacherInfoWrite, "teacher_info"), h.TeacherInfos.Update)
	sheets.DELETE("/:id", track(models.ActivityTeacherInfoWrite, "teacher_info"), h.TeacherInfos.Delete)
}
