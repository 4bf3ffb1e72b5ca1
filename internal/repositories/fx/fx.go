package fx

import (
	"github.com/orgball2608/ephemeral-feed/internal/repositories/friendship"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/post"
	"github.com/orgball2608/ephemeral-feed/internal/repositories/reaction"
	"go.uber.org/fx"
)

var Module = fx.Options(
	post.Module,
	reaction.Module,
	friendship.Module,
)
