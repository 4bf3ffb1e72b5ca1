package api

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/internal/feed"
	"github.com/orgball2608/ephemeral-feed/internal/media"
	"github.com/orgball2608/ephemeral-feed/internal/settings"
	apperrors "github.com/orgball2608/ephemeral-feed/pkg/errors"
)

var statusByCode = map[string]int{
	apperrors.CodeValidation:    fiber.StatusBadRequest,
	apperrors.CodeAuthorization: fiber.StatusForbidden,
	apperrors.CodeNotFound:      fiber.StatusNotFound,
	apperrors.CodeConflict:      fiber.StatusConflict,
	apperrors.CodeRateLimited:   fiber.StatusTooManyRequests,
	apperrors.CodeTransient:     fiber.StatusServiceUnavailable,
	apperrors.CodeDegraded:      fiber.StatusServiceUnavailable,
}

// errorHandler renders engine errors as {"code", "error"} with a status
// derived from the error code.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	code := apperrors.GetCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"code":  code,
		"error": apperrors.GetMessage(err),
	})
}

func RegisterRoutes(r fiber.Router, svc FeedService, prefs SettingsStore, store media.Store) {
	r.Get("/healthz", func(c *fiber.Ctx) error {
		if err := svc.Health(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"reason": apperrors.GetMessage(err),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Get("/feed", func(c *fiber.Ctx) error {
		return c.JSON(newPostsResponse(svc.Active(), time.Now()))
	})

	r.Post("/feed/load", func(c *fiber.Ctx) error {
		if err := svc.Load(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(newPostsResponse(svc.Active(), time.Now()))
	})

	r.Post("/feed/refresh", func(c *fiber.Ctx) error {
		if err := svc.Refresh(c.UserContext()); err != nil {
			return err
		}
		return c.JSON(newPostsResponse(svc.Active(), time.Now()))
	})

	r.Post("/foreground", func(c *fiber.Ctx) error {
		if err := svc.Foreground(c.UserContext()); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/posts", func(c *fiber.Ctx) error {
		req, err := parseCreate(c)
		if err != nil {
			return err
		}
		post, err := svc.Create(c.UserContext(), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(newPostResponse(post, time.Now()))
	})

	r.Delete("/posts/:id", func(c *fiber.Ctx) error {
		if err := svc.DeletePost(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/posts/:id/reactions", func(c *fiber.Ctx) error {
		var body reactionBody
		if err := c.BodyParser(&body); err != nil || body.Emoji == "" {
			return fiber.NewError(fiber.StatusBadRequest, "emoji required")
		}
		reaction, err := svc.ToggleReaction(c.UserContext(), c.Params("id"), body.Emoji)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"viewer_reaction": reaction})
	})

	r.Post("/posts/:id/views", func(c *fiber.Ctx) error {
		views, err := svc.MarkViewed(c.UserContext(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"view_count": views})
	})

	r.Get("/pending", func(c *fiber.Ctx) error {
		pending := svc.Pending()
		out := make([]pendingResponse, 0, len(pending))
		for _, m := range pending {
			out = append(out, pendingResponse{Kind: m.Kind, PostID: m.PostID, Target: m.Target, StartedAt: m.StartedAt})
		}
		return c.JSON(out)
	})

	r.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(newStatusResponse(svc.Status()))
	})

	r.Post("/friends/:id", func(c *fiber.Ctx) error {
		if err := svc.AcceptFriend(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/friends/:id", func(c *fiber.Ctx) error {
		if err := svc.RemoveFriend(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/settings", func(c *fiber.Ctx) error {
		s := prefs.Get()
		return c.JSON(settingsBody{LocationPrecision: s.LocationPrecision, ShareLocation: &s.ShareLocation})
	})

	r.Put("/settings", func(c *fiber.Ctx) error {
		var body settingsBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
		}

		next := prefs.Get()
		if body.LocationPrecision != "" {
			next.LocationPrecision = body.LocationPrecision
		}
		if body.ShareLocation != nil {
			next.ShareLocation = *body.ShareLocation
		}
		if err := prefs.Update(next); err != nil {
			if errors.Is(err, settings.ErrInvalidPrecision) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return err
		}
		return c.JSON(settingsBody{LocationPrecision: next.LocationPrecision, ShareLocation: &next.ShareLocation})
	})

	r.Get("/media/*", func(c *fiber.Ctx) error {
		rc, contentType, err := store.Open(c.Params("*"))
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "media not found")
			}
			return err
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.SendStream(rc)
	})
}

// parseCreate reads the multipart form of POST /posts.
func parseCreate(c *fiber.Ctx) (feed.CreateRequest, error) {
	header, err := c.FormFile("media")
	if err != nil {
		return feed.CreateRequest{}, fiber.NewError(fiber.StatusBadRequest, "media file required")
	}
	f, err := header.Open()
	if err != nil {
		return feed.CreateRequest{}, fiber.NewError(fiber.StatusBadRequest, "unreadable media")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return feed.CreateRequest{}, fiber.NewError(fiber.StatusBadRequest, "unreadable media")
	}

	req := feed.CreateRequest{
		Data: data,
		Kind: domain.MediaKind(c.FormValue("kind", string(domain.MediaImage))),
	}
	if caption := strings.TrimSpace(c.FormValue("caption")); caption != "" {
		req.Caption = &caption
	}

	name, city := c.FormValue("location_name"), c.FormValue("city")
	if name == "" && city == "" {
		return req, nil
	}
	lat, err := strconv.ParseFloat(c.FormValue("latitude", "0"), 64)
	if err != nil {
		return feed.CreateRequest{}, fiber.NewError(fiber.StatusBadRequest, "invalid latitude")
	}
	lng, err := strconv.ParseFloat(c.FormValue("longitude", "0"), 64)
	if err != nil {
		return feed.CreateRequest{}, fiber.NewError(fiber.StatusBadRequest, "invalid longitude")
	}
	req.Location = &domain.Location{
		Name:      name,
		City:      city,
		State:     c.FormValue("state"),
		Latitude:  lat,
		Longitude: lng,
	}
	return req, nil
}
