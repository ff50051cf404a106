package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartAuthMessage]        = (*StartAuthCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ConnectAPIKeyMessage]    = (*ConnectAPIKeyCommand)(nil)
	_ gocmd.Commander[EnsureFreshMessage]      = (*EnsureFreshCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
	_ gocmd.Commander[MarkPrimaryMessage]      = (*MarkPrimaryCommand)(nil)
	_ gocmd.Commander[InvokeToolMessage]       = (*InvokeToolCommand)(nil)
)
