package api

import (
	"github.com/gofiber/fiber/v2"

	"schola/store"
	"schola/types"
)

type SubjectHandler struct {
	store store.DBStorer
}

func NewSubjectHandler(st store.DBStorer) *SubjectHandler {
	return &SubjectHandler{
		store: st,
	}
}

func (h *SubjectHandler) HandleList(c *fiber.Ctx) error {
	subjects, err := h.store.ListSubjects(c.Context())
	if err != nil {
		return err
	}
	if subjects == nil {
		subjects = []types.Subject{}
	}
	return c.JSON(subjects)
}

func (h *SubjectHandler) HandleGet(c *fiber.Ctx) error {
	name := c.Params("name")
	subject, err := h.store.GetSubjectByName(c.Context(), name)
	if err != nil {
		return err
	}
	if subject == nil {
		return ErrNotFound("subject", name)
	}
	return c.JSON(subject)
}

func (h *SubjectHandler) HandleCreate(c *fiber.Ctx) error {
	var params types.SubjectParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	existing, err := h.store.GetSubjectByName(c.Context(), params.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrConflict("subject already exists")
	}

	subject, err := h.store.CreateSubject(c.Context(), types.Subject{
		Name:          params.Name,
		Description:   params.Description,
		UseDatasource: params.UseDatasource,
		Tags:          params.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(subject)
}

func (h *SubjectHandler) HandleUpdate(c *fiber.Ctx) error {
	name := c.Params("name")
	var params types.SubjectParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	params.Name = name

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	err := h.store.UpdateSubject(c.Context(), types.Subject{
		Name:          params.Name,
		Description:   params.Description,
		UseDatasource: params.UseDatasource,
		Tags:          params.Tags,
	})
	if err != nil {
		return ErrNotFound("subject", name)
	}

	subject, err := h.store.GetSubjectByName(c.Context(), name)
	if err != nil {
		return err
	}
	return c.JSON(subject)
}

func (h *SubjectHandler) HandleDelete(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.store.DeleteSubject(c.Context(), name); err != nil {
		return ErrNotFound("subject", name)
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
