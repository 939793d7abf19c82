package countdown

import "fmt"

// Wire messages. Every line sent to a player is one of these.
const (
	MsgWelcome        = "Welcome to the game\n"
	MsgGameStarting   = "All players have joined. The game is starting...\n"
	MsgYourTurn       = "It's your turn!\n"
	MsgWaiting        = "\nServer: Waiting for other players...\n"
	MsgInvalidMove    = "ERROR Invalid move or command. Try again!\n"
	MsgNotYourTurn    = "ERROR It's not your turn. Please wait.\n"
	MsgTooManyInvalid = "You have made 5 invalid input attempts. You Lost!\n"
	MsgTimedOut       = "You Lost!\n"
	MsgWon            = "You won!\n"
	MsgLost           = "You lost!\n"

	// MsgGameOver is the single end-of-game signal. Clients stop reading once
	// they see it.
	MsgGameOver = "Game Over!\n"
)

// TotalMessage announces the remaining total after a valid move.
func TotalMessage(total int) string {
	return fmt.Sprintf("Total is %d. Enter Number:\n", total)
}
