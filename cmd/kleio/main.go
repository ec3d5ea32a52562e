// Command kleio wraps program executions as tracked, resumable trials.
package main

func main() {
	Execute()
}
