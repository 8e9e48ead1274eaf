package store

// SQL owned by the storage layer. Listing and counting both follow id order.
const (
	schemaSQL = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		login TEXT NOT NULL
	);
	`

	countUsersSQL = `SELECT COUNT(*) FROM users`
	listUsersSQL  = `SELECT login FROM users ORDER BY id`
	pageUsersSQL  = `SELECT id, login FROM users ORDER BY id LIMIT ? OFFSET ?`
	getUserSQL    = `SELECT id, login FROM users WHERE id = ?`

	// Numbered parameters keep the (id, login) argument order for both.
	updateUserSQL = `UPDATE users SET login = ?2 WHERE id = ?1`
	insertUserSQL = `INSERT INTO users (id, login) VALUES (?1, ?2)`
)
