package sqlstore

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
  id    TEXT PRIMARY KEY,
  name  TEXT NOT NULL,
  price TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS stock (
  product_id TEXT PRIMARY KEY,
  available  INTEGER NOT NULL CHECK (available >= 0),
  version    INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS carts (
  id         TEXT PRIMARY KEY,
  owner_id   TEXT NOT NULL UNIQUE,
  version    INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
  cart_id    TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  quantity   INTEGER NOT NULL CHECK (quantity > 0),
  seq        INTEGER NOT NULL,
  PRIMARY KEY (cart_id, product_id)
)`,
	`CREATE TABLE IF NOT EXISTS orders (
  id           TEXT PRIMARY KEY,
  owner_id     TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  status       TEXT NOT NULL,
  version      INTEGER NOT NULL DEFAULT 0,
  created_at   INTEGER NOT NULL,
  updated_at   INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_owner_created ON orders(owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
  order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  quantity   INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL,
  seq        INTEGER NOT NULL,
  PRIMARY KEY (order_id, product_id)
)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
  id    VARCHAR(64) PRIMARY KEY,
  name  VARCHAR(255) NOT NULL,
  price VARCHAR(32) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS stock (
  product_id VARCHAR(64) PRIMARY KEY,
  available  BIGINT NOT NULL,
  version    BIGINT NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL,
  CHECK (available >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS carts (
  id         VARCHAR(64) PRIMARY KEY,
  owner_id   VARCHAR(128) NOT NULL,
  version    BIGINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  UNIQUE KEY uq_carts_owner (owner_id)
)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
  cart_id    VARCHAR(64) NOT NULL,
  product_id VARCHAR(64) NOT NULL,
  quantity   INT NOT NULL,
  seq        INT NOT NULL,
  PRIMARY KEY (cart_id, product_id),
  FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS orders (
  id           VARCHAR(64) PRIMARY KEY,
  owner_id     VARCHAR(128) NOT NULL,
  total_amount VARCHAR(32) NOT NULL,
  status       VARCHAR(16) NOT NULL,
  version      BIGINT NOT NULL DEFAULT 0,
  created_at   BIGINT NOT NULL,
  updated_at   BIGINT NOT NULL,
  KEY idx_orders_owner_created (owner_id, created_at)
)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
  order_id   VARCHAR(64) NOT NULL,
  product_id VARCHAR(64) NOT NULL,
  quantity   INT NOT NULL,
  unit_price VARCHAR(32) NOT NULL,
  seq        INT NOT NULL,
  PRIMARY KEY (order_id, product_id),
  FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
)`,
}
