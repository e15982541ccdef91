package dto

import "github.com/medconnect/telemed/internal/models"

type RegisterRequest struct {
	FirstName  string      `json:"first_name" binding:"required,min=1,max=50"`
	LastName   string      `json:"last_name" binding:"required,min=1,max=50"`
	Email      string      `json:"email" binding:"required,email"`
	Password   string      `json:"password" binding:"required,min=8,max=72"`
	Role       models.Role `json:"role" binding:"required"`
	Speciality string      `json:"speciality"` // required for doctors
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
