package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler for route registration.
type Handlers struct {
	Students    *StudentHandler
	Courses     *CourseHandler
	Instructors *InstructorHandler
	Enrollments *EnrollmentHandler
	References  *ReferenceHandler
}

// RegisterRoutes mounts all API routes under the given group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	students := api.Group("/students")
	{
		students.GET("", h.Students.List)
		students.POST("", h.Students.Create)
		students.GET("/:id", h.Students.Get)
		students.PUT("/:id", h.Students.Update)
		students.DELETE("/:id", h.Students.Deactivate)
		students.GET("/:id/transcript", h.Students.Transcript)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", h.Courses.List)
		courses.POST("", h.Courses.Create)
		courses.GET("/:id", h.Courses.Get)
		courses.PUT("/:id", h.Courses.Update)
		courses.DELETE("/:id", h.Courses.Deactivate)
		courses.GET("/:id/roster", h.Courses.Roster)
		courses.GET("/:id/roster/export", h.Courses.RosterExport)
	}

	instructors := api.Group("/instructors")
	{
		instructors.GET("", h.Instructors.List)
		instructors.POST("", h.Instructors.Create)
		instructors.GET("/:id", h.Instructors.Get)
		instructors.PUT("/:id", h.Instructors.Update)
		instructors.DELETE("/:id", h.Instructors.Deactivate)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.GET("", h.Enrollments.List)
		enrollments.POST("", h.Enrollments.Create)
		enrollments.GET("/:id", h.Enrollments.Get)
		enrollments.POST("/:id/grade", h.Enrollments.PostGrade)
	}

	api.GET("/departments", h.References.Departments)
	api.GET("/semesters", h.References.Semesters)
}
