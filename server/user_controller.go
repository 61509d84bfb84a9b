package server

import (
	"github.com/gofiber/fiber/v2"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/middleware/jwtware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserController serves the caller's profile and the admin user listing.
type UserController struct {
	services *Services
	logger   auth.Logger
}

func NewUserController(services *Services, logger auth.Logger) *UserController {
	if logger == nil {
		logger = auth.NewNopLogger()
	}
	return &UserController{services: services, logger: logger}
}

func (u *UserController) RegisterRoutes(r fiber.Router) {
	r.Get("/users", u.Profile)
	r.Put("/users", u.UpdateProfile)

	admin := r.Group("/admin")
	admin.Get("/users", u.List)
	admin.Get("/users/:id", u.Get)
}

func (u *UserController) Profile(c *fiber.Ctx) error {
	ac := jwtware.FromContext(c)
	if ac.Principal == nil {
		return auth.ErrUnauthorized
	}
	return c.JSON(ac.Principal)
}

func (u *UserController) UpdateProfile(c *fiber.Ctx) error {
	ac := jwtware.FromContext(c)
	if ac.Principal == nil {
		return auth.ErrUnauthorized
	}

	payload := auth.UpdateProfileMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	var updated *auth.Principal
	payload.PrincipalID = ac.Principal.ID.String()
	payload.OnResponse = func(p *auth.Principal) {
		updated = p
	}

	if err := u.services.UpdateProfile.Execute(c.UserContext(), payload); err != nil {
		return err
	}
	return c.JSON(updated)
}

// List pages with ?limit and ?offset.
func (u *UserController) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, total, err := u.services.Directory.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (u *UserController) Get(c *fiber.Ctx) error {
	principal, err := u.services.Directory.FindByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(principal)
}
