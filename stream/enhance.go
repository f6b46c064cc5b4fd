package stream

//Stateful components keep state across restarts.
type Stateful interface {
	//Snapshot serialize component state, called after the component exits
	Snapshot() ([]byte, error)

	//Restore component state, called after Open and before the component runs
	Restore(snapshot []byte) error
}

//Committer persists a snapshot on behalf of a named component.
//The runtime stores one in every source context under CommitterKey.
type Committer interface {
	Commit(name string, snapshot []byte) error
}

const CommitterKey = "$committer"
