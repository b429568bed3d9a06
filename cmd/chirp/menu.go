package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chirpnet/chirp/pkg/client"
	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/types"
)

// runClientMenu signs a user up (re-prompting on username collisions)
// and drives the interactive menu until quit.
func runClientMenu(cfg *config.Config) error {
	in := bufio.NewScanner(os.Stdin)

	c := client.New(cfg)
	defer c.Close()

	username := prompt(in, "Enter your username: ")
	for {
		err := c.SignUp(username)
		if err == nil {
			break
		}
		if errors.Is(err, client.ErrUsernameTaken) {
			fmt.Println("Invalid username - another user already owns it!")
			username = prompt(in, "Enter a new username: ")
			continue
		}
		return err
	}
	fmt.Printf("User %q registered with id %d, topic %q.\n", c.Username(), c.UserID(), c.Topic())

	for {
		showMenu()
		choice, err := strconv.Atoi(prompt(in, "Choose an option: "))
		if err != nil {
			fmt.Println("Please enter a valid number.")
			continue
		}

		switch choice {
		case 1:
			postText(in, c)
		case 2:
			followUser(in, c)
		case 3:
			sendPrivateMessage(in, c)
		case 4:
			viewNotifications(c)
		case 5:
			viewTimeline(c)
		case 6:
			setForcedDelay(in, c)
		case 7:
			fmt.Println("Bye.")
			return nil
		default:
			fmt.Println("Invalid option, try again.")
		}
	}
}

func showMenu() {
	fmt.Println("\n===== Chirp =====")
	fmt.Println("1. Publish a post")
	fmt.Println("2. Follow a user")
	fmt.Println("3. Send a private message")
	fmt.Println("4. View notifications")
	fmt.Println("5. View timeline")
	fmt.Println("6. Set forced clock delay")
	fmt.Println("7. Quit")
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func postText(in *bufio.Scanner, c *client.Client) {
	text := prompt(in, "Write your post: ")
	msg, err := c.PostText(text)
	if err != nil {
		fmt.Printf("Failed to post: %v\n", err)
		return
	}
	fmt.Println(msg)
}

func followUser(in *bufio.Scanner, c *client.Client) {
	username := prompt(in, "Username to follow: ")
	if username == c.Username() {
		fmt.Println("You cannot follow yourself.")
		return
	}

	ret, err := c.Follow(username)
	if err != nil {
		fmt.Printf("Failed to follow: %v\n", err)
		return
	}
	switch ret {
	case types.Success:
		fmt.Printf("You are now following %s.\n", username)
	case types.ErrUserNotFound:
		fmt.Println("User not found.")
	case types.ErrInvalidParameter:
		fmt.Println("You cannot follow yourself.")
	default:
		fmt.Println("Failed to follow the user.")
	}
}

func sendPrivateMessage(in *bufio.Scanner, c *client.Client) {
	recipient := prompt(in, "Recipient username: ")
	if recipient == c.Username() {
		fmt.Println("You cannot message yourself.")
		return
	}

	showConversation(c, recipient)

	text := prompt(in, "Message: ")
	ret, err := c.SendPrivateMessage(recipient, text)
	if err != nil || ret != types.Success {
		fmt.Println("Failed to send the message, try again!")
		return
	}
	showConversation(c, recipient)
}

func showConversation(c *client.Client, recipient string) {
	msgs, err := c.Conversation(recipient)
	if err != nil {
		fmt.Printf("Failed to load conversation: %v\n", err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	fmt.Printf("\n--- Conversation with %s ---\n", recipient)
	for _, m := range msgs {
		when := time.Unix(m.Timestamp, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("[%s] %s: %s\n", when, m.Sender, m.Text)
	}
}

func viewNotifications(c *client.Client) {
	fmt.Println("\n--- Notifications ---")
	notifications := c.Notifications()
	if len(notifications) == 0 {
		fmt.Println("No new notifications.")
		return
	}
	for i, n := range notifications {
		fmt.Printf("[%d] %s\n", i+1, n)
	}
}

func viewTimeline(c *client.Client) {
	posts, err := c.Timeline()
	if err != nil {
		fmt.Printf("Failed to load timeline: %v\n", err)
		return
	}
	fmt.Println("\n--- Timeline ---")
	if len(posts) == 0 {
		fmt.Println("No posts yet.")
		return
	}
	for _, p := range posts {
		fmt.Println("----------------------------------")
		fmt.Printf("User: %s\n", p.Username)
		fmt.Printf("Text: %s\n", p.Texto)
		fmt.Printf("Sent at: %s\n", p.TempoEnvioMensagem)
	}
}

func setForcedDelay(in *bufio.Scanner, c *client.Client) {
	raw := prompt(in, "Delay in seconds (0 for none): ")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		fmt.Println("Invalid value, enter a non-negative integer.")
		return
	}
	c.SetForcedDelay(time.Duration(seconds) * time.Second)
	fmt.Printf("Forced delay set to %d seconds.\n", seconds)
}
