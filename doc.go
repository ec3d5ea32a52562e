/*
Package kleio tracks the execution of computational experiments.

Kleiō wraps arbitrary commands and records everything needed to find,
inspect and reproduce them later: the exact command line and resolved
configuration (which together form the trial's identity), the code and
host fingerprints, the captured output, and user-reported statistics,
all as append-only event streams.

Running the same command twice resumes the same trial instead of
creating a duplicate. Resuming with changed code or environment is a
conflict and is refused unless explicitly allowed, or side-stepped by
branching a child trial that inherits the parent's history up to the
branch point.

# Architecture

The core follows a hexagonal layout. Package domain holds the trial
model and its status machine; package ports declares the store and
locker interfaces; internal adapters implement them for the filesystem,
Redis and memory. Package producer registers and reserves trials,
package consumer executes them, and package client is embedded by
tracked programs to log statistics against their own trial.

# Usage

	session, err := kleio.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	handle, err := session.Producer.Build(ctx, []string{"python", "train.py", "--lr", "0.1"}, producer.Options{})
	if err != nil {
		log.Fatal(err)
	}
	if err := session.Producer.Reserve(ctx, handle, producer.Options{}); err != nil {
		log.Fatal(err)
	}
	err = session.Consumer.Consume(ctx, handle, consumer.Options{})

The kleio command wraps the same flow for the shell:

	kleio run -- python train.py --lr 0.1
*/
package kleio
