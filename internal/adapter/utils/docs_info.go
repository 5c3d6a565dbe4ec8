// @title           Source Analysis API
// @version         1.0
// @description     Answers questions over a project's reference sources and runs long analyses as background jobs.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package utils

//run redis
//docker run -p 6379:6379 -d redis

//run postgres (optional, set ANALYZE_DATABASE_URL)
//docker run -p 5432:5432 -e POSTGRES_PASSWORD=analyze -d postgres:16

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
