package app

import (
	"github.com/vk/xfiber/internal/handlers"
	"github.com/vk/xfiber/modules/chat"
)

// coreModules is the definitive list of all business modules that are
// compiled into the xfiber binary.
var coreModules = []handlers.Module{
	&chat.Module{},
}
