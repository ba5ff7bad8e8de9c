// authentico manages users and permissions and serves gRPC health for the identity store.
package main

import "authentico/cmd/authentico/cmd"

func main() {
	cmd.Execute()
}
