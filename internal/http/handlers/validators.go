package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/domain/user"
)

// RegisterValidators adds the `username` and `namecolor` binding tags to gin's
// validator. Usernames are checked case-insensitively since registration
// lowercases them.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return registerValidators(v)
}

func registerValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return user.ValidUsername(strings.ToLower(strings.TrimSpace(fl.Field().String())))
	}); err != nil {
		return err
	}
	return v.RegisterValidation("namecolor", func(fl validator.FieldLevel) bool {
		return channel.ValidNameColor(fl.Field().String())
	})
}
