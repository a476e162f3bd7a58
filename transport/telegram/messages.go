package telegram

import (
	"fmt"
	"html"
	"strconv"

	"github.com/layer-3/walletlink/core"
	"github.com/layer-3/walletlink/service"
)

// Bot command and the callback data carried by inline buttons
const (
	CommandStart    = "start"
	CallbackConnect = "connect_wallet"
	CallbackRetry   = "retry"
)

const startText = `Hello! I am a bot for connecting Ethereum wallets.

To get started, you need to:
• Install a crypto wallet like <a href="https://metamask.io/download/">Metamask</a> as a browser extension or mobile app
• Connect your wallet using the button below

Click the "Connect Wallet" button when you're ready to start.`

const pairWalletText = `Scan the QR code with your mobile wallet or click the "Connect Wallet" button to connect via browser.`

// StartMessage greets a user and offers to connect a wallet
func StartMessage(chatID int64) core.Message {
	return core.Message{
		ChatID:  chatID,
		Text:    startText,
		Buttons: [][]core.Button{{{Text: "Connect Wallet", Data: CallbackConnect}}},
	}
}

// PairingMessage carries the pairing QR code. Browsable pairings get a
// button, anything else is printed so it can be pasted into a wallet.
func PairingMessage(p service.Pairing, qr []byte) core.Message {
	msg := core.Message{
		ChatID:    p.UserID,
		Text:      pairWalletText,
		Photo:     qr,
		PhotoName: "qr_" + strconv.FormatInt(p.UserID, 10) + ".png",
	}

	if p.Browsable() {
		msg.Buttons = [][]core.Button{{{Text: "Connect Wallet", URL: p.BrowserURL}}}
	} else {
		msg.Text += "\n\nOr copy this link to your wallet:\n<code>" + html.EscapeString(p.URI) + "</code>"
	}

	return msg
}

// ConnectedMessage reports a paired wallet
func ConnectedMessage(chatID int64, address string) core.Message {
	return core.Message{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Wallet successfully connected!\n\nAddress: <b>%s</b>", html.EscapeString(address)),
	}
}

// ErrorMessage reports a failed pairing and offers a retry
func ErrorMessage(chatID int64, reason string) core.Message {
	return core.Message{
		ChatID:  chatID,
		Text:    fmt.Sprintf("❌ Error connecting wallet: %s\n\nPlease try again.", html.EscapeString(reason)),
		Buttons: [][]core.Button{{{Text: "Retry", Data: CallbackRetry}}},
	}
}

// PendingMessage tells a user their previous pairing is still open
func PendingMessage(chatID int64) core.Message {
	return core.Message{
		ChatID: chatID,
		Text:   "⏳ A wallet connection is already in progress. Finish it in your wallet or wait for it to expire.",
	}
}
