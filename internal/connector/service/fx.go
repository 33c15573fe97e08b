package service

import "go.uber.org/fx"

var Module = fx.Module("connector.client",
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) Sender { return c }),
)
