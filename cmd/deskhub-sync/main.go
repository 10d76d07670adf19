// deskhub-sync bridges DeskHub support tickets with a remote issue tracker:
// outbound pushes over the tracker's GraphQL API, inbound updates over signed
// webhooks.
package main

func main() {
	Execute()
}
