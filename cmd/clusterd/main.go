// Command clusterd runs cluster configuration commands asynchronously in a
// pool of worker processes and exposes them over a small HTTP task API.
package main

func main() {
	Execute()
}
