package router

import (
	"time"

	tg "github.com/m3rciful/toolbot/core/telegram"
	"github.com/m3rciful/toolbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/toolbot/core/telegram/helpers"
	"github.com/m3rciful/toolbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks. Callbacks for a chat
// with an in-progress conversation go to the conversation engine; the rest are
// resolved through the registry.
func CallbackRoute(convs Conversations, reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		_ = c.Respond()

		if convs != nil && convs.InProgress(chatID(c)) {
			return handleWithSummary(c, "conversation_callback", start, "", "", func() error {
				return convs.Dispatch(tghelpers.BuildContext(c), CallbackEvent(c))
			})
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, "", "", func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, "", "", func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
